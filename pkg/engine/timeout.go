package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// EvalTimeout is the default limit for a single evaluation. Effects with
// large step or iteration counts run inside it.
const EvalTimeout = 30 * time.Second

// evalResult passes evaluation results through channels.
type evalResult struct {
	art    lineart.LineArt
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds timeout. It uses a generation counter to
// discard stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (lineart.LineArt, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return lineart.New(), nil, fmt.Errorf("evaluation superseded by newer request")
		}
		if res.err != nil {
			return lineart.New(), nil, res.err
		}
		return res.art, res.errors, nil

	case <-timer.C:
		return lineart.New(), nil, fmt.Errorf("evaluation timed out after %s", timeout)
	}
}
