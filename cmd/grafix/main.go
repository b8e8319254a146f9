// Command grafix evaluates a Lisp script over JSON line-art inputs and
// writes the resulting polylines as JSON.
//
//	grafix -script examples/rings.lisp -input shape=examples/square.json -output out.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// inputFlags collects repeated -input name=path flags.
type inputFlags map[string]string

func (f inputFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f inputFlags) Set(s string) error {
	name, path, ok := strings.Cut(s, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", s)
	}
	if _, dup := f[name]; dup {
		return fmt.Errorf("input %q given twice", name)
	}
	f[name] = path
	return nil
}

func main() {
	inputs := inputFlags{}
	var (
		script  = flag.String("script", "", "Lisp script to evaluate")
		output  = flag.String("output", "-", "output file, - for stdout")
		workers = flag.Int("workers", 0, "worker goroutines per effect (0 = GOMAXPROCS)")
		timeout = flag.Duration("timeout", 30*time.Second, "evaluation timeout")
		verbose = flag.Bool("v", false, "log degraded effects to stderr")
	)
	flag.Var(inputs, "input", "named line-art input as name=file.json (repeatable)")
	flag.Parse()

	if *script == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		effect.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	source, err := os.ReadFile(*script)
	if err != nil {
		log.Fatalf("Failed to read script: %v", err)
	}
	arts := make(map[string]lineart.LineArt, len(inputs))
	for name, path := range inputs {
		la, err := loadLineArt(path)
		if err != nil {
			log.Fatal(err)
		}
		arts[name] = la
	}

	app := NewApp(*workers)
	app.engine.Timeout = *timeout
	result := app.Evaluate(string(source), arts)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	data = append(data, '\n')
	if *output == "-" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(*output, data, 0o644)
	}
	if err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			log.Printf("line %d: %s", e.Line, e.Message)
		}
		os.Exit(1)
	}
}
