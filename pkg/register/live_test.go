//go:build fsr_live

package register_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/regsift/fsregister/pkg/register"
)

// These tests hit the production register and need real credentials:
//
//	FSR_API_EMAIL=... FSR_API_KEY=... go test -tags fsr_live ./pkg/register
func TestLive_ResolveAndFetchFirm(t *testing.T) {
	cfg, err := register.LoadEnv()
	if err != nil {
		t.Fatalf("credentials are required for fsr_live tests: %v", err)
	}
	c, err := register.New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	frn, err := c.ResolveFirmReference(ctx, "hiscox insurance company limited")
	if err != nil {
		t.Fatalf("ResolveFirmReference: %v", err)
	}
	if frn != "113849" {
		t.Errorf("frn = %q, want 113849", frn)
	}

	env, err := c.Firm(ctx, frn)
	if err != nil {
		t.Fatalf("Firm: %v", err)
	}
	if !env.HasData() {
		t.Error("Firm profile came back without data")
	}

	// A clean disciplinary record is served as an empty envelope, not an error.
	if _, err := c.FirmDisciplinaryHistory(ctx, frn); err != nil {
		t.Errorf("FirmDisciplinaryHistory: %v", err)
	}
}

func TestLive_AmbiguousAndMissingNames(t *testing.T) {
	cfg, err := register.LoadEnv()
	if err != nil {
		t.Fatalf("credentials are required for fsr_live tests: %v", err)
	}
	c, err := register.New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var amb *register.AmbiguousResultsError
	if _, err := c.ResolveFirmReference(ctx, "hiscox"); !errors.As(err, &amb) {
		t.Errorf("short name: err = %v, want *register.AmbiguousResultsError", err)
	}

	var noRes *register.NoResultsError
	if _, err := c.ResolveFirmReference(ctx, "zzz no such firm zzz"); !errors.As(err, &noRes) {
		t.Errorf("unknown name: err = %v, want *register.NoResultsError", err)
	}
}
