package hub

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/opaline-ai/spyglass/internal/event"
)

// Filter wraps a compiled CEL program evaluated per event per
// connection. A nil or disabled filter matches everything.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles expr into a Filter. Available variables:
// type (string), ts_ms (int), size (int), text (payload as string),
// json (parsed payload), now_ms (int). An empty expression yields a
// pass-all filter.
func NewFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the filter against ev. Evaluation errors exclude the
// event rather than failing the connection.
func (f *Filter) Match(ev *event.Event) bool {
	if f == nil || !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(ev.Data, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"type":   string(ev.Type),
		"ts_ms":  ev.Timestamp.UnixMilli(),
		"size":   int64(len(ev.Data)),
		"text":   string(ev.Data),
		"json":   jsonObj,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
