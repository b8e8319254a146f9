package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/engine"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// colorPalette is a default palette used to assign distinct pen colors to
// polylines.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App evaluates scripts and converts the result to the JSON output format.
type App struct {
	engine *engine.Engine
}

// PolylineData is one output polyline.
type PolylineData struct {
	Points [][3]float64 `json:"points"`
	Closed bool         `json:"closed"`
	Color  string       `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result written by the command.
type EvalResult struct {
	Polylines []PolylineData  `json:"polylines"`
	Errors    []EvalErrorData `json:"errors"`
}

// NewApp creates a new App. workers is handed to every effect.
func NewApp(workers int) *App {
	eng := engine.NewEngine()
	eng.Workers = workers
	return &App{engine: eng}
}

// Evaluate runs source against the named inputs and returns polylines +
// errors. It never fails; problems are reported in Errors.
func (a *App) Evaluate(source string, inputs map[string]lineart.LineArt) EvalResult {
	result := EvalResult{
		Polylines: []PolylineData{},
		Errors:    []EvalErrorData{},
	}

	la, evalErrs, err := a.engine.Evaluate(source, inputs)
	if err != nil {
		effect.Logger().Error("evaluate", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	for i := 0; i < la.Len(); i++ {
		pl := la.Polyline(i)
		pts := make([][3]float64, len(pl))
		for k, p := range pl {
			pts[k] = [3]float64{p.X, p.Y, p.Z}
		}
		result.Polylines = append(result.Polylines, PolylineData{
			Points: pts,
			Closed: len(pl) > 2 && pl[0] == pl[len(pl)-1],
			Color:  colorPalette[i%len(colorPalette)],
		})
	}
	effect.Logger().Debug("evaluate", "polylines", la.Len(), "vertices", la.VertexCount())
	return result
}

// loadLineArt reads a JSON-encoded line-art file.
func loadLineArt(path string) (lineart.LineArt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lineart.LineArt{}, fmt.Errorf("grafix: read input: %w", err)
	}
	var la lineart.LineArt
	if err := json.Unmarshal(data, &la); err != nil {
		return lineart.LineArt{}, fmt.Errorf("grafix: decode %s: %w", path, err)
	}
	if len(la.Offsets) == 0 {
		la.Offsets = []int{0}
	}
	if err := la.Validate(); err != nil {
		return lineart.LineArt{}, fmt.Errorf("grafix: %s: %w", path, err)
	}
	effect.Logger().Debug("input loaded", "path", path, "polylines", la.Len())
	return la, nil
}
