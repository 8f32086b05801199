package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/regsift/fsregister/internal/mockregister"
)

func main() {
	addr := defaultString("MOCK_REGISTER_ADDR", ":8080")
	fixturesPath := defaultString("MOCK_REGISTER_FIXTURES", "")
	authEmail := defaultString("MOCK_REGISTER_AUTH_EMAIL", "")
	authKey := defaultString("MOCK_REGISTER_AUTH_KEY", "")

	fs := flag.NewFlagSet("mock-register", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixturesPath, "fixtures", fixturesPath, "JSON fixtures file with search entries and resource payloads")
	fs.StringVar(&authEmail, "auth-email", authEmail, "Expected X-Auth-Email; empty disables auth checks")
	fs.StringVar(&authKey, "auth-key", authKey, "Expected X-Auth-Key; empty disables auth checks")
	_ = fs.Parse(os.Args[1:])

	srv := mockregister.New()
	if fixturesPath != "" {
		if err := srv.LoadFixtureFile(fixturesPath); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fixtures error: %v\n", err)
			os.Exit(2)
		}
	}
	srv.RequireAuth(authEmail, authKey)

	_, _ = fmt.Fprintf(os.Stdout, "mock-register listening on %s (fixtures=%s)\n", addr, fixturesPath)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
