package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/regsift/fsregister/internal/app"
	"github.com/regsift/fsregister/internal/screen"
	"github.com/regsift/fsregister/internal/version"
	"github.com/regsift/fsregister/pkg/pipeline/redact"
	"github.com/regsift/fsregister/pkg/register"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version":
		fmt.Println(version.Current)
		return
	case "search":
		os.Exit(runSearch(ctx, os.Args[2:]))
	case "resolve":
		os.Exit(runResolve(ctx, os.Args[2:]))
	case "get":
		os.Exit(runGet(ctx, os.Args[2:]))
	case "markets":
		os.Exit(runMarkets(ctx, os.Args[2:]))
	case "screen":
		os.Exit(runScreen(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func newClientFromEnv() (*register.Client, error) {
	cfg, err := register.LoadEnv()
	if err != nil {
		return nil, err
	}
	return register.New(cfg)
}

func runSearch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	query := fs.String("q", "", "Name to search for (required)")
	typ := fs.String("type", "firm", "Record category: firm, individual or fund")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*query) == "" {
		_, _ = fmt.Fprintln(os.Stderr, "search requires -q")
		return 2
	}
	cat, err := register.ParseCategory(*typ)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}

	client, err := newClientFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	res, err := client.Search(ctx, *query, cat)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "search failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	if !res.HasData() {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", res.Status, res.Message)
		return 0
	}
	return printJSON(res.Data)
}

func runResolve(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	name := fs.String("name", "", "Name to resolve to a unique reference number (required)")
	typ := fs.String("type", "firm", "Record category: firm, individual or fund")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*name) == "" {
		_, _ = fmt.Fprintln(os.Stderr, "resolve requires -name")
		return 2
	}
	cat, err := register.ParseCategory(*typ)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}

	client, err := newClientFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	ref, err := client.ResolveReference(ctx, *name, cat)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "resolve failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	fmt.Println(ref)
	return 0
}

func runGet(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	typ := fs.String("type", "firm", "Record category: firm, individual or fund")
	ref := fs.String("ref", "", "Reference number (FRN, IRN or PRN) of the record")
	name := fs.String("name", "", "Name to resolve to a reference number first (alternative to -ref)")
	detail := fs.String("detail", "", "Resource detail to fetch; empty fetches the profile (see help)")
	requirementRef := fs.String("requirement", "", "Requirement reference for -detail investment-types")
	country := fs.String("country", "", "Country for -detail passport-permissions")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cat, err := register.ParseCategory(*typ)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}
	hasRef := strings.TrimSpace(*ref) != ""
	hasName := strings.TrimSpace(*name) != ""
	if hasRef == hasName {
		_, _ = fmt.Fprintln(os.Stderr, "get requires exactly one of -ref or -name")
		return 2
	}

	client, err := newClientFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	target := *ref
	if hasName {
		target, err = client.ResolveReference(ctx, *name, cat)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "resolve failed: %s\n", redact.Secrets(err.Error()))
			return 1
		}
	}

	env, err := fetchResource(ctx, client, cat, strings.TrimSpace(*detail), target, *requirementRef, *country)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "get failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	if !env.HasData() {
		_, _ = fmt.Fprintf(os.Stderr, "no data on record for %s %s\n", cat, target)
		return 0
	}
	return printJSON(env.Data)
}

func runMarkets(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("markets", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client, err := newClientFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	env, err := client.RegulatedMarkets(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "markets failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	if !env.HasData() {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", env.Status, env.Message)
		return 0
	}
	return printJSON(env.Data)
}

func runScreen(ctx context.Context, args []string) int {
	screenEnv, err := loadScreenOptionsFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	fs := flag.NewFlagSet("screen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var inputPath string
	var outputPath string
	var resume bool
	var workers int
	var maxRetries int
	var requestTimeout time.Duration
	var rateLimitRPS float64
	var failFast bool

	fs.StringVar(&inputPath, "input", "", "Input CSV file path (must include a 'name' column; optional 'category' column)")
	fs.StringVar(&outputPath, "output", "", "Output report CSV file path")
	fs.BoolVar(&resume, "resume", false, "Carry over resolved rows from an existing output report")
	fs.IntVar(&workers, "workers", screenEnv.Workers, "Number of concurrent lookup workers (env: WORKERS)")
	fs.IntVar(&maxRetries, "max-retries", screenEnv.MaxRetries, "Max retries per subject for transient failures (env: MAX_RETRIES)")
	fs.DurationVar(&requestTimeout, "request-timeout", screenEnv.RequestTimeout, "Per-subject request timeout (env: REQUEST_TIMEOUT)")
	fs.Float64Var(&rateLimitRPS, "rate-limit-rps", screenEnv.RateLimitRPS, "Global request rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
	fs.BoolVar(&failFast, "fail-fast", screenEnv.FailFast, "Fail fast on first lookup error (env: FAIL_FAST)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if inputPath == "" || outputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "screen requires -input and -output")
		return 2
	}

	client, err := newClientFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	if err := app.RunScreen(ctx, client, inputPath, outputPath, resume, screen.Options{
		Workers:        workers,
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
		FailFast:       failFast,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "screen run failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	return 0
}

func printJSON(data []byte) int {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "format response: %s\n", err)
		return 1
	}
	fmt.Println(out.String())
	return 0
}

func fetchResource(ctx context.Context, c *register.Client, cat register.Category, detail, ref, requirementRef, country string) (*register.Envelope, error) {
	switch cat {
	case register.CategoryFirm:
		switch detail {
		case "":
			return c.Firm(ctx, ref)
		case "names":
			return c.FirmNames(ctx, ref)
		case "address":
			return c.FirmAddress(ctx, ref)
		case "cf":
			return c.FirmControlledFunctions(ctx, ref)
		case "individuals":
			return c.FirmIndividuals(ctx, ref)
		case "permissions":
			return c.FirmPermissions(ctx, ref)
		case "requirements":
			return c.FirmRequirements(ctx, ref)
		case "investment-types":
			return c.FirmRequirementInvestmentTypes(ctx, ref, requirementRef)
		case "regulators":
			return c.FirmRegulators(ctx, ref)
		case "passports":
			return c.FirmPassports(ctx, ref)
		case "passport-permissions":
			return c.FirmPassportPermissions(ctx, ref, country)
		case "waivers":
			return c.FirmWaivers(ctx, ref)
		case "exclusions":
			return c.FirmExclusions(ctx, ref)
		case "disciplinary-history":
			return c.FirmDisciplinaryHistory(ctx, ref)
		case "ar":
			return c.FirmAppointedRepresentatives(ctx, ref)
		}
	case register.CategoryIndividual:
		switch detail {
		case "":
			return c.Individual(ctx, ref)
		case "cf":
			return c.IndividualControlledFunctions(ctx, ref)
		case "disciplinary-history":
			return c.IndividualDisciplinaryHistory(ctx, ref)
		}
	case register.CategoryFund:
		switch detail {
		case "":
			return c.Fund(ctx, ref)
		case "names":
			return c.FundNames(ctx, ref)
		case "subfunds":
			return c.FundSubfunds(ctx, ref)
		}
	}
	return nil, fmt.Errorf("unknown detail %q for %s records", detail, cat)
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `fsregister: client for the UK Financial Services Register API

Usage:
  fsregister <command> [flags]

Commands:
  search   Search the register by name within a category
  resolve  Reduce a name to its unique reference number (FRN/IRN/PRN)
  get      Fetch a record or one of its resource details
  markets  List current UK and EU/EEA regulated markets
  screen   Resolve a CSV of names into a screening report
  version  Print the build version

Examples:
  fsregister resolve -name "hiscox insurance company limited" -type firm
  fsregister get -type firm -ref 113849 -detail permissions
  fsregister get -type individual -name "mark carney" -detail disciplinary-history
  fsregister screen -input subjects.csv -output report.csv -resume

Details for get -type firm:
  names, address, cf, individuals, permissions, requirements,
  investment-types (with -requirement), regulators, passports,
  passport-permissions (with -country), waivers, exclusions,
  disciplinary-history, ar

Details for get -type individual:  cf, disciplinary-history
Details for get -type fund:        names, subfunds

Environment:
  FSR_API_EMAIL     Email registered with the register developer portal (required)
  FSR_API_KEY       API key for FSR_API_EMAIL (required; or FSR_API_KEY_FILE)
  FSR_API_KEY_FILE  File path containing the API key
  FSR_BASE_URL      Base URL override (proxies/testing)
  FSR_CA_PATH       Extra CA bundle (PEM) to trust for TLS
  FSR_CONFIG        Optional YAML config file with the same settings

`)
}

func loadScreenOptionsFromEnv() (screen.Options, error) {
	workers, err := envInt("WORKERS", 10)
	if err != nil {
		return screen.Options{}, err
	}
	maxRetries, err := envInt("MAX_RETRIES", 3)
	if err != nil {
		return screen.Options{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return screen.Options{}, err
	}
	failFast, err := envBool("FAIL_FAST")
	if err != nil {
		return screen.Options{}, err
	}
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0)
	if err != nil {
		return screen.Options{}, err
	}

	return screen.Options{
		Workers:        workers,
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
		FailFast:       failFast,
	}, nil
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return false, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
