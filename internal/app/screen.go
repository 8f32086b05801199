// Package app wires the screening pipeline together for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/regsift/fsregister/internal/screen"
	"github.com/regsift/fsregister/pkg/pipeline/core"
	"github.com/regsift/fsregister/pkg/register"
)

// RunScreen reads a subjects CSV, resolves every subject against the
// register, and writes the screening report CSV.
//
// With resume set, rows that already resolved to a unique reference in an
// existing report at outputPath are carried over instead of being looked up
// again.
func RunScreen(ctx context.Context, resolver screen.Resolver, inputPath, outputPath string, resume bool, opts screen.Options) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	logf := func(format string, args ...any) {
		prefix := make([]any, 0, len(args)+1)
		prefix = append(prefix, runID)
		prefix = append(prefix, args...)
		logger.Printf("run=%s "+format, prefix...)
	}
	runStart := time.Now()

	logf(
		"screen run start: input=%s output=%s resume=%t workers=%d maxRetries=%d timeout=%s rateLimitRPS=%g failFast=%t",
		inputPath,
		outputPath,
		resume,
		opts.Workers,
		opts.MaxRetries,
		opts.RequestTimeout,
		opts.RateLimitRPS,
		opts.FailFast,
	)

	readStart := time.Now()
	subjects, err := screen.SubjectsFile{Path: inputPath}.Load(ctx)
	if err != nil {
		return err
	}
	logf("loaded %d subjects from %s in %s", len(subjects), inputPath, time.Since(readStart).Round(time.Millisecond))

	existing := map[string]screen.Row{}
	if resume {
		existing, err = readPriorReport(outputPath, logger, runID)
		if err != nil {
			return err
		}
	}
	plan := buildResumePlan(subjects, existing)
	logf(
		"resume plan: inputRows=%d cachedRows=%d subjectsToResolve=%d",
		len(subjects),
		plan.cachedRows,
		len(plan.pending),
	)

	screenStart := time.Now()
	if len(plan.pending) > 0 {
		fresh, err := screen.ScreenSubjects(ctx, plan.pending, newTracedResolver(resolver, logger, runID, opts), opts)
		if err != nil {
			return err
		}
		if err := plan.applyRows(fresh); err != nil {
			return err
		}
	}
	rows := plan.rows
	counts := countOutcomes(rows)
	logf(
		"screening complete: produced=%d ok=%d no_match=%d ambiguous=%d error=%d duration=%s",
		len(rows),
		counts[screen.OutcomeOK],
		counts[screen.OutcomeNoMatch],
		counts[screen.OutcomeAmbiguous],
		counts[screen.OutcomeError],
		time.Since(screenStart).Round(time.Millisecond),
	)

	writeStart := time.Now()
	if err := (screen.ReportFile{Path: outputPath}).Store(ctx, rows); err != nil {
		return err
	}
	logf(
		"screen run complete: report=%s writeDuration=%s totalDuration=%s",
		outputPath,
		time.Since(writeStart).Round(time.Millisecond),
		time.Since(runStart).Round(time.Millisecond),
	)
	return nil
}

// subjectKey identifies a subject across runs. The register search is
// case-insensitive, so the key is too.
func subjectKey(name, category string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return name + "|" + strings.TrimSpace(category)
}

func readPriorReport(path string, logger *log.Logger, runID string) (map[string]screen.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("run=%s resume: no prior report found at %s", runID, path)
			return map[string]screen.Row{}, nil
		}
		return nil, fmt.Errorf("open prior report: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := screen.ReadReportCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse prior report: %w", err)
	}

	out := make(map[string]screen.Row, len(rows))
	for _, row := range rows {
		key := subjectKey(row.Name, row.Category)
		if key == "" {
			continue
		}
		out[key] = row
	}
	logger.Printf("run=%s resume: loaded %d prior report rows from %s", runID, len(out), path)
	return out, nil
}

type resumePlan struct {
	rows       []screen.Row
	pending    []screen.Subject
	pendingIdx map[string][]int
	cachedRows int
}

// buildResumePlan carries over prior rows that resolved cleanly and queues
// everything else, deduplicating repeated subjects within the input.
func buildResumePlan(subjects []screen.Subject, existing map[string]screen.Row) resumePlan {
	plan := resumePlan{
		rows:       make([]screen.Row, len(subjects)),
		pendingIdx: make(map[string][]int),
	}
	for i, s := range subjects {
		name := strings.TrimSpace(s.Name)
		key := subjectKey(name, s.Category.String())

		if prev, ok := existing[key]; ok && prev.Outcome == screen.OutcomeOK {
			prev.Name = name
			plan.rows[i] = prev
			plan.cachedRows++
			continue
		}

		if _, seen := plan.pendingIdx[key]; !seen {
			plan.pending = append(plan.pending, screen.Subject{Name: name, Category: s.Category})
		}
		plan.pendingIdx[key] = append(plan.pendingIdx[key], i)
	}
	return plan
}

func (p *resumePlan) applyRows(rows []screen.Row) error {
	if len(rows) != len(p.pending) {
		return fmt.Errorf("resume mismatch: got %d rows for %d pending subjects", len(rows), len(p.pending))
	}
	for i, s := range p.pending {
		key := subjectKey(s.Name, s.Category.String())
		idxs, ok := p.pendingIdx[key]
		if !ok || len(idxs) == 0 {
			return fmt.Errorf("resume mismatch: missing pending indexes for %q", s.Name)
		}
		for _, idx := range idxs {
			p.rows[idx] = rows[i]
		}
	}
	return nil
}

func countOutcomes(rows []screen.Row) map[string]int {
	counts := make(map[string]int, 4)
	for _, row := range rows {
		counts[row.Outcome]++
	}
	return counts
}

// tracedResolver logs one request/response line pair per lookup attempt.
type tracedResolver struct {
	next           screen.Resolver
	logger         *log.Logger
	runID          string
	maxRetries     int
	requestTimeout time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

func newTracedResolver(next screen.Resolver, logger *log.Logger, runID string, opts screen.Options) *tracedResolver {
	return &tracedResolver{
		next:           next,
		logger:         logger,
		runID:          runID,
		maxRetries:     opts.MaxRetries,
		requestTimeout: opts.RequestTimeout,
		attempts:       make(map[string]int),
	}
}

func (t *tracedResolver) ResolveReference(ctx context.Context, name string, cat register.Category) (string, error) {
	name = strings.TrimSpace(name)
	attempt := t.nextAttempt(subjectKey(name, cat.String()))

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Printf(
		"run=%s resolve request: name=%q category=%s attempt=%d timeout=%s deadlineIn=%s",
		t.runID,
		name,
		cat,
		attempt,
		t.requestTimeout,
		deadlineIn,
	)

	start := time.Now()
	ref, err := t.next.ResolveReference(ctx, name, cat)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		var noRes *register.NoResultsError
		var amb *register.AmbiguousResultsError
		switch {
		case errors.As(err, &noRes):
			t.logger.Printf(
				"run=%s resolve response: name=%q category=%s attempt=%d duration=%s status=no_match",
				t.runID, name, cat, attempt, elapsed,
			)
		case errors.As(err, &amb):
			t.logger.Printf(
				"run=%s resolve response: name=%q category=%s attempt=%d duration=%s status=ambiguous matches=%d",
				t.runID, name, cat, attempt, elapsed, amb.Count,
			)
		default:
			retryable := isRetryableError(err)
			willRetry := retryable && attempt <= maxRetryBudgetForErr(t.maxRetries, err)
			t.logger.Printf(
				"run=%s resolve response: name=%q category=%s attempt=%d duration=%s status=error retryable=%t willRetry=%t error=%q",
				t.runID, name, cat, attempt, elapsed, retryable, willRetry, err.Error(),
			)
		}
		return "", err
	}

	t.logger.Printf(
		"run=%s resolve response: name=%q category=%s attempt=%d duration=%s status=ok ref=%s",
		t.runID,
		name,
		cat,
		attempt,
		elapsed,
		ref,
	)
	return ref, nil
}

func (t *tracedResolver) nextAttempt(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxRetryBudgetForErr(defaultMax int, err error) int {
	if defaultMax < 0 {
		defaultMax = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		capMax := capErr.MaxExtraRetries()
		if capMax < 0 {
			capMax = 0
		}
		if capMax < defaultMax {
			return capMax
		}
	}
	return defaultMax
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var he *register.HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == 429 || he.StatusCode/100 == 5
	}
	var te *core.TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *core.LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
