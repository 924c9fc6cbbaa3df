package script

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
)

// kwPrefix marks keyword arguments after preprocessing.
const kwPrefix = "__kw_"

// preprocessSource adapts script source to zygomys syntax:
//
//   - ";" line comments become "//" comments
//   - :keyword becomes the string literal "__kw_keyword"
//   - kebab-case identifiers become snake_case (set-face-normal -> set_face_normal)
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)
	b := source
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '"' || c == '`':
			j := skipString(b, i)
			out.WriteString(b[i:j])
			i = j
		case c == ';':
			for i < len(b) && b[i] == ';' {
				i++
			}
			j := strings.IndexByte(b[i:], '\n')
			if j < 0 {
				j = len(b) - i
			}
			out.WriteString("//")
			out.WriteString(b[i : i+j])
			i += j
		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out.WriteString(`"` + kwPrefix + b[i+1:j] + `"`)
			i = j
		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out.WriteByte('_')
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// skipString returns the index just past the string literal starting at i.
func skipString(b string, i int) int {
	quote := b[i]
	j := i + 1
	for j < len(b) && b[j] != quote {
		if quote == '"' && b[j] == '\\' {
			j++
		}
		j++
	}
	if j < len(b) {
		j++
	}
	return min(j, len(b))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	res := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		s, ok := args[i].(*zygo.SexpStr)
		if !ok || !strings.HasPrefix(s.S, kwPrefix) {
			res.positional = append(res.positional, args[i])
			continue
		}
		name := strings.TrimPrefix(s.S, kwPrefix)
		if i+1 < len(args) {
			res.kw[name] = args[i+1]
			i++
		} else {
			res.kw[name] = zygo.SexpNull
		}
	}
	return res
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toColor reads a 3 or 4 element list or array of numbers. Alpha
// defaults to 1.
func toColor(s zygo.Sexp) ([4]float64, error) {
	var items []zygo.Sexp
	switch v := s.(type) {
	case *zygo.SexpArray:
		items = v.Val
	case *zygo.SexpPair:
		l, err := zygo.ListToArray(v)
		if err != nil {
			return [4]float64{}, err
		}
		items = l
	default:
		return [4]float64{}, fmt.Errorf("expected color list, got %T (%s)", s, s.SexpString(nil))
	}
	if len(items) != 3 && len(items) != 4 {
		return [4]float64{}, fmt.Errorf("color needs 3 or 4 components, got %d", len(items))
	}
	c := [4]float64{0, 0, 0, 1}
	for i, it := range items {
		f, err := toFloat64(it)
		if err != nil {
			return [4]float64{}, fmt.Errorf("color component %d: %w", i, err)
		}
		if f < 0 || f > 1 {
			return [4]float64{}, fmt.Errorf("color component %d out of range [0,1]: %g", i, f)
		}
		c[i] = f
	}
	return c, nil
}

// objectArg returns the single object-name argument of a command.
func objectArg(cmd string, args []zygo.Sexp) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s requires an object name, got %d arguments", cmd, len(args))
	}
	s, err := toString(args[0])
	if err != nil {
		return "", fmt.Errorf("%s: object: %w", cmd, err)
	}
	return s, nil
}

// registerBuiltins installs the scene commands into env. Commands forward
// to e's Target and are recorded in res.
func registerBuiltins(env *zygo.Zlisp, e *Engine, res *Result) {
	record := func(format string, args ...any) {
		res.Commands = append(res.Commands, fmt.Sprintf(format, args...))
	}

	// (target) -> name of the object being post-processed
	env.AddFunction("target", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 0 {
			return zygo.SexpNull, fmt.Errorf("target takes no arguments")
		}
		return &zygo.SexpStr{S: res.Object}, nil
	})

	// (set-face-normal obj)
	env.AddFunction("set_face_normal", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		obj, err := objectArg("set-face-normal", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := e.target.SetFaceNormals(obj); err != nil {
			return zygo.SexpNull, fmt.Errorf("set-face-normal: %w", err)
		}
		record("set-face-normal %s", obj)
		return zygo.SexpNull, nil
	})

	// (conform-normals obj)
	env.AddFunction("conform_normals", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		obj, err := objectArg("conform-normals", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := e.target.ConformNormals(obj); err != nil {
			return zygo.SexpNull, fmt.Errorf("conform-normals: %w", err)
		}
		record("conform-normals %s", obj)
		return zygo.SexpNull, nil
	})

	// (shading-node :kind "lambert" :name "voxelizerLambert" :color [0.5 0.5 0.5 1])
	// -> created shader name
	env.AddFunction("shading_node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("shading-node takes only keyword arguments")
		}
		spec := e.shader
		if v, ok := pa.kw["kind"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("shading-node: kind: %w", err)
			}
			spec.Kind = s
		}
		if v, ok := pa.kw["name"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("shading-node: name: %w", err)
			}
			spec.Name = s
		}
		if v, ok := pa.kw["color"]; ok {
			c, err := toColor(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("shading-node: color: %w", err)
			}
			spec.Color = c
		}
		shader, err := e.target.CreateShader(spec.Kind, spec.Name, spec.Color)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shading-node: %w", err)
		}
		record("shading-node %s %s", spec.Kind, shader)
		return &zygo.SexpStr{S: shader}, nil
	})

	// (assign-material obj shader)
	env.AddFunction("assign_material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("assign-material requires an object and a shader, got %d arguments", len(args))
		}
		obj, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assign-material: object: %w", err)
		}
		shader, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assign-material: shader: %w", err)
		}
		if err := e.target.AssignMaterial(obj, shader); err != nil {
			return zygo.SexpNull, fmt.Errorf("assign-material: %w", err)
		}
		record("assign-material %s %s", obj, shader)
		return zygo.SexpNull, nil
	})
}
