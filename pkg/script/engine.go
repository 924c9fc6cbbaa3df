// Package script runs the host post-processing commands that follow mesh
// creation (normal recomputation, shader creation and assignment) as small
// Lisp programs evaluated in a sandboxed zygomys interpreter.
//
// Scripts act on a Target, the scene that owns the freshly created object.
// The Engine implements host.NormalsSetter and host.MaterialAssigner.
package script

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// Target is the scene surface scripts operate on. Objects and shaders are
// addressed by name.
type Target interface {
	SetFaceNormals(object string) error
	ConformNormals(object string) error
	CreateShader(kind, name string, color [4]float64) (string, error)
	AssignMaterial(object, shader string) error
}

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a failed scene command.
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

// Result lists the scene commands a script issued, in order.
type Result struct {
	Object   string
	Commands []string
}

// Material is the shader a material script creates when it does not say
// otherwise.
type Material struct {
	Kind  string
	Name  string
	Color [4]float64
}

// Config configures an Engine. Zero fields take the package defaults.
type Config struct {
	NormalsScript  string
	MaterialScript string
	Material       Material
	Timeout        time.Duration
}

// Engine evaluates post-processing scripts against a Target. Each
// evaluation gets a fresh sandbox, so an Engine is safe for concurrent use
// as long as its Target is.
type Engine struct {
	target   Target
	normals  string
	material string
	shader   Material
	timeout  time.Duration
}

// NewEngine creates an Engine bound to target.
func NewEngine(target Target, cfg Config) *Engine {
	e := &Engine{
		target:   target,
		normals:  cfg.NormalsScript,
		material: cfg.MaterialScript,
		shader:   cfg.Material,
		timeout:  cfg.Timeout,
	}
	if e.normals == "" {
		e.normals = DefaultNormalsScript
	}
	if e.material == "" {
		e.material = DefaultMaterialScript
	}
	if e.shader.Kind == "" {
		e.shader.Kind = DefaultMaterial.Kind
	}
	if e.shader.Name == "" {
		e.shader.Name = DefaultMaterial.Name
	}
	if e.shader.Color == ([4]float64{}) {
		e.shader.Color = DefaultMaterial.Color
	}
	if e.timeout <= 0 {
		e.timeout = EvalTimeout
	}
	return e
}

// SetNormals runs the normals script on object.
func (e *Engine) SetNormals(ctx context.Context, object string) error {
	return e.run(ctx, "normals", object, e.normals)
}

// AssignMaterial runs the material script on object.
func (e *Engine) AssignMaterial(ctx context.Context, object string) error {
	return e.run(ctx, "material", object, e.material)
}

func (e *Engine) run(ctx context.Context, what, object, source string) error {
	_, evalErrs, err := e.Evaluate(ctx, object, source)
	if err != nil {
		return fmt.Errorf("script: %s for %s: %w", what, object, err)
	}
	if len(evalErrs) > 0 {
		return fmt.Errorf("script: %s for %s: %w", what, object, evalErrs[0])
	}
	return nil
}

// Evaluate runs source with (target) bound to object.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, cancellation, panic): returns nil + nil + error
func (e *Engine) Evaluate(ctx context.Context, object, source string) (*Result, []EvalError, error) {
	ch := make(chan evalResult, 1)
	var abandoned atomic.Bool

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := e.evaluate(object, source, &abandoned)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	res, evalErrs, err := waitWithTimeout(ctx, ch, e.timeout)
	if err != nil {
		abandoned.Store(true)
	}
	return res, evalErrs, err
}

// errAbandoned unwinds a sandbox whose caller stopped waiting.
var errAbandoned = errors.New("script: evaluation abandoned")

// evaluate performs the actual zygomys evaluation in a fresh sandbox. Once
// abandoned is set, the next function call inside the script unwinds the
// interpreter, so no further commands reach the Target.
func (e *Engine) evaluate(object, source string, abandoned *atomic.Bool) (*Result, []EvalError, error) {
	res := &Result{Object: object}
	if strings.TrimSpace(source) == "" {
		return res, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	env.AddPreHook(func(*zygo.Zlisp, string, []zygo.Sexp) {
		if abandoned.Load() {
			panic(errAbandoned)
		}
	})
	registerBuiltins(env, e, res)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return res, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting a line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
