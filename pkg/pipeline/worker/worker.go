package worker

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/regsift/fsregister/pkg/pipeline/core"
	"golang.org/x/time/rate"
)

// Policy controls how a run reacts to a failed item.
type Policy int

const (
	// PolicyPartialOutput records the failure on the item's result and keeps going.
	PolicyPartialOutput Policy = iota
	// PolicyFailFast cancels the whole run on the first failed item.
	PolicyFailFast
)

// Options tune one pool run. Zero values take defaults.
type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration

	// RateLimitRPS caps attempt starts across all workers. <=0 disables.
	RateLimitRPS float64

	Policy Policy

	// BackoffInitial is the sleep before the first retry; doubles per attempt
	// up to BackoffMax. BackoffJitter applies +/- fractional jitter (0.2 = 20%).
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffJitter  float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 10
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitter <= 0 {
		o.BackoffJitter = 0.2
	}
	return o
}

// Result pairs one input item with its output or its final error.
type Result[In any, Out any] struct {
	Input  In
	Output Out
	Err    error
}

// Run processes every item through fn on a bounded worker pool and returns
// results in input order.
func Run[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	return RunWithCallback(ctx, items, fn, nil, opts)
}

// RunWithCallback is Run plus an onResult hook invoked as items complete, in
// completion order. A non-nil error from onResult cancels the run.
func RunWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]) error,
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	type job struct {
		idx int
		in  In
	}
	type completion struct {
		idx int
		res Result[In, Out]
	}

	jobs := make(chan job)
	completions := make(chan completion, opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if runCtx.Err() != nil {
					return
				}
				out, err := attempt(runCtx, j.in, fn, limiter, opts)
				res := Result[In, Out]{Input: j.in, Output: out, Err: err}
				select {
				case completions <- completion{idx: j.idx, res: res}:
				case <-runCtx.Done():
					return
				}
				if err != nil && opts.Policy == PolicyFailFast {
					fail(err)
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job{idx: i, in: item}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(completions)
	}()

	out := make([]Result[In, Out], len(items))
	for c := range completions {
		out[c.idx] = c.res
		if onResult != nil {
			if err := onResult(c.res); err != nil {
				fail(err)
			}
		}
	}

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// attempt runs fn for one item, retrying transient failures with backoff.
func attempt[In any, Out any](
	ctx context.Context,
	item In,
	fn func(context.Context, In) (Out, error),
	limiter *rate.Limiter,
	opts Options,
) (Out, error) {
	var last Out
	for try := 0; ; try++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return last, err
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		}
		out, err := fn(reqCtx, item)
		last = out
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return last, ctx.Err()
		}
		if !isTransient(err) || try >= retryBudget(opts.MaxRetries, err) {
			return last, err
		}

		t := time.NewTimer(backoffSleep(opts, try))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return last, ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

// retryBudget returns the retry cap for err, honoring per-error caps that are
// lower than the pool default.
func retryBudget(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capped retryCap
	if errors.As(err, &capped) {
		n := capped.MaxExtraRetries()
		if n < 0 {
			n = 0
		}
		if n < defaultRetries {
			return n
		}
	}
	return defaultRetries
}

func isTransient(err error) bool {
	if err == nil {
		return false
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

func backoffSleep(opts Options, try int) time.Duration {
	sleep := opts.BackoffInitial
	for i := 0; i < try && sleep < opts.BackoffMax; i++ {
		sleep *= 2
		if sleep > opts.BackoffMax {
			sleep = opts.BackoffMax
			break
		}
	}
	if opts.BackoffJitter <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*opts.BackoffJitter
	return time.Duration(float64(sleep) * j)
}
