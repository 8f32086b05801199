package screen

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/regsift/fsregister/pkg/pipeline/core"
	"github.com/regsift/fsregister/pkg/pipeline/redact"
	"github.com/regsift/fsregister/pkg/pipeline/worker"
	"github.com/regsift/fsregister/pkg/register"
)

// Resolver reduces one name to a unique reference number. *register.Client
// satisfies it; tests and decorators substitute their own.
type Resolver interface {
	ResolveReference(ctx context.Context, name string, cat register.Category) (string, error)
}

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	FailFast       bool
}

// resolution is the per-subject lookup verdict before rendering into a Row.
type resolution struct {
	ref     string
	outcome string
	matches int
}

// ScreenSubjects resolves every subject and returns report rows in input
// order.
//
// Lookup failures are recorded per-row and do not fail the full run unless
// FailFast is set. No-match and ambiguous names are regular findings, never
// failures.
func ScreenSubjects(ctx context.Context, subjects []Subject, resolver Resolver, opts Options) ([]Row, error) {
	policy := worker.PolicyPartialOutput
	if opts.FailFast {
		policy = worker.PolicyFailFast
	}

	var proc core.Processor[Subject, resolution] = newLookup(resolver)
	out, err := worker.Run(ctx, subjects, proc.Process, worker.Options{
		Workers:        opts.Workers,
		MaxRetries:     opts.MaxRetries,
		RequestTimeout: opts.RequestTimeout,
		RateLimitRPS:   opts.RateLimitRPS,
		Policy:         policy,
		BackoffInitial: 200 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		BackoffJitter:  0.2,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(out))
	for _, item := range out {
		rows = append(rows, toRow(item))
	}
	return rows, nil
}

// newLookup builds the per-subject resolution step the pool runs. Cardinality
// outcomes come back as data; only operational failures become errors.
func newLookup(resolver Resolver) core.ProcessFunc[Subject, resolution] {
	return func(ctx context.Context, s Subject) (resolution, error) {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return resolution{}, errors.New("empty subject name")
		}

		ref, err := resolver.ResolveReference(ctx, name, s.Category)
		if err == nil {
			return resolution{ref: ref, outcome: OutcomeOK, matches: 1}, nil
		}

		var noRes *register.NoResultsError
		if errors.As(err, &noRes) {
			return resolution{outcome: OutcomeNoMatch}, nil
		}
		var amb *register.AmbiguousResultsError
		if errors.As(err, &amb) {
			return resolution{outcome: OutcomeAmbiguous, matches: amb.Count}, nil
		}
		return resolution{}, classifyErr(err)
	}
}

func toRow(item worker.Result[Subject, resolution]) Row {
	row := Row{
		Name:     strings.TrimSpace(item.Input.Name),
		Category: item.Input.Category.String(),
	}
	if item.Err != nil {
		row.Outcome = OutcomeError
		row.Error = redact.Secrets(item.Err.Error())
		return row
	}
	row.ReferenceNumber = item.Output.ref
	row.Outcome = item.Output.outcome
	row.Matches = strconv.Itoa(item.Output.matches)
	return row
}

// classifyErr marks retryable register failures so the pool backs off and
// tries again. Rate limiting and server-side errors are retryable; auth and
// client mistakes are not.
func classifyErr(err error) error {
	var he *register.HTTPError
	if errors.As(err, &he) {
		if he.StatusCode == 429 || he.StatusCode/100 == 5 {
			return &core.TransientError{Err: err}
		}
	}
	return err
}
