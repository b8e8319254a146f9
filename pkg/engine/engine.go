// Package engine provides the Lisp scripting surface over the line-art
// effects. It wraps zygomys in a sandboxed environment and returns the
// line-art produced by the last expression of the user's program.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use; each
// call to Evaluate creates a fresh sandboxed environment for determinism.
type Engine struct {
	// Timeout bounds one evaluation. Zero means EvalTimeout.
	Timeout time.Duration
	// Workers is passed to every effect; zero means GOMAXPROCS.
	Workers int

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{Timeout: EvalTimeout}
}

// Evaluate runs Lisp source with the given named line-art inputs, which the
// program reads with (input "name").
//
// Return semantics:
//   - On success: the line-art value of the last expression (empty when the
//     program does not end in line-art) + nil errors + nil error
//   - On parse/eval failure: empty line-art + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): empty line-art + nil + error
func (e *Engine) Evaluate(source string, inputs map[string]lineart.LineArt) (lineart.LineArt, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		la, evalErrs, err := e.evaluate(source, inputs)
		ch <- evalResult{art: la, errors: evalErrs, err: err}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	return waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, inputs map[string]lineart.LineArt) (lineart.LineArt, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return lineart.New(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, inputs, e.Workers)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return lineart.New(), parseZygomysError(err), nil
	}

	v, err := env.Run()
	if err != nil {
		return lineart.New(), parseZygomysError(err), nil
	}
	if la, ok := v.(*sexpLineArt); ok {
		return la.art, nil, nil
	}
	return lineart.New(), nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
