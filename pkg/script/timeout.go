package script

import (
	"context"
	"fmt"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

type evalResult struct {
	result *Result
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, giving up when the timeout
// elapses or ctx is done. The evaluating goroutine keeps running until
// Evaluate marks it abandoned and the script makes its next call; ch is
// buffered so it never blocks on send.
func waitWithTimeout(ctx context.Context, ch <-chan evalResult, timeout time.Duration) (*Result, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.result, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", timeout)
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
