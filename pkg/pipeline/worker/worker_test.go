package worker_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/regsift/fsregister/pkg/pipeline/core"
	"github.com/regsift/fsregister/pkg/pipeline/worker"
)

func TestRun_RetriesTransient(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	failUntil := 2

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= failUntil {
			return "", &core.TransientError{Err: errors.New("try again")}
		}
		return "113849", nil
	}

	out, err := worker.Run(context.Background(), []string{"hiscox insurance company limited"}, fn, worker.Options{
		Workers:        1,
		MaxRetries:     3,
		Policy:         worker.PolicyPartialOutput,
		RequestTimeout: 1 * time.Second,
		BackoffInitial: 1 * time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].Err != nil || out[0].Output != "113849" {
		t.Fatalf("unexpected result: %#v", out[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRun_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", errors.New("permanent")
	}

	out, err := worker.Run(context.Background(), []string{"hiscox"}, fn, worker.Options{
		Workers:        1,
		MaxRetries:     10,
		Policy:         worker.PolicyPartialOutput,
		BackoffInitial: 1 * time.Millisecond,
		BackoffMax:     1 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].Err == nil || out[0].Err.Error() != "permanent" {
		t.Fatalf("unexpected result: %#v", out[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRun_RespectsPerErrorRetryCap(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", &core.LimitedTransientError{
			Err:          errors.New("upstream shedding load"),
			ExtraRetries: 1,
		}
	}

	out, err := worker.Run(context.Background(), []string{"hiscox"}, fn, worker.Options{
		Workers:        1,
		MaxRetries:     10,
		Policy:         worker.PolicyPartialOutput,
		BackoffInitial: 1 * time.Millisecond,
		BackoffMax:     1 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].Err == nil {
		t.Fatalf("expected error result, got %#v", out[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected 2 calls (1 initial + 1 retry), got %d", calls)
	}
}

func TestRun_FailFastStops(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, name string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()

		if name == "bad name" {
			return "", errors.New("boom")
		}
		t.Errorf("unexpected call for %q", name)
		return "", nil
	}

	out, err := worker.Run(context.Background(), []string{"bad name", "good name"}, fn, worker.Options{
		Workers:    1,
		MaxRetries: 0,
		Policy:     worker.PolicyFailFast,
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil results on fail-fast, got %#v", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRun_PartialOutputContinues(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, name string) (string, error) {
		if name == "bad name" {
			return "", errors.New("boom")
		}
		return "122702", nil
	}

	out, err := worker.Run(context.Background(), []string{"bad name", "barclays bank plc"}, fn, worker.Options{
		Workers:    1,
		MaxRetries: 0,
		Policy:     worker.PolicyPartialOutput,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Err == nil || out[0].Err.Error() != "boom" {
		t.Fatalf("unexpected out[0]: %#v", out[0])
	}
	if out[1].Err != nil || out[1].Output != "122702" {
		t.Fatalf("unexpected out[1]: %#v", out[1])
	}
}

func TestRunWithCallback_CompletionOrder(t *testing.T) {
	t.Parallel()

	releaseSlow := make(chan struct{})
	startedSlow := make(chan struct{})
	var firstCallbackInput atomic.Value
	firstCallbackInput.Store("")

	fn := func(_ context.Context, name string) (string, error) {
		if name == "slow firm" {
			close(startedSlow)
			<-releaseSlow
		}
		return name, nil
	}

	var mu sync.Mutex
	var seen []string
	doneErr := make(chan error, 1)
	go func() {
		_, err := worker.RunWithCallback(
			context.Background(),
			[]string{"slow firm", "fast firm"},
			fn,
			func(res worker.Result[string, string]) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, res.Input)
				if len(seen) == 1 {
					firstCallbackInput.Store(res.Input)
				}
				return nil
			},
			worker.Options{Workers: 2},
		)
		doneErr <- err
	}()

	select {
	case <-startedSlow:
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for slow item to start")
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if firstCallbackInput.Load().(string) == "fast firm" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := firstCallbackInput.Load().(string); got != "fast firm" {
		t.Fatalf("expected fast callback first, got %q", got)
	}

	close(releaseSlow)
	select {
	case err := <-doneErr:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(seen, []string{"fast firm", "slow firm"}) {
		t.Fatalf("unexpected callback order: %v", seen)
	}
}

func TestRunWithCallback_CallbackErrorStopsRun(t *testing.T) {
	t.Parallel()

	callbackErr := errors.New("callback failed")
	_, err := worker.RunWithCallback(
		context.Background(),
		[]string{"hiscox"},
		func(_ context.Context, name string) (string, error) {
			return name, nil
		},
		func(worker.Result[string, string]) error {
			return callbackErr
		},
		worker.Options{Workers: 1},
	)
	if !errors.Is(err, callbackErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
