package velocity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type renderer struct {
	tmpl   *Template
	ctx    Context
	logger zerolog.Logger
	out    strings.Builder
}

func (r *renderer) render(nodes []node) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *textNode:
			r.out.WriteString(n.text)

		case *refNode:
			v, ok, err := r.resolve(n)
			if err != nil {
				return err
			}
			switch {
			case n.escaped && ok:
				r.out.WriteString(n.raw)
			case n.escaped:
				r.out.WriteString("\\" + n.raw)
			case ok && v != nil:
				r.out.WriteString(toString(v))
			case n.quiet:
			default:
				r.logger.Trace().Str("template", r.tmpl.name).Str("reference", n.raw).Msg("Unresolved reference")
				r.out.WriteString(n.raw)
			}

		case *setNode:
			v, ok, err := n.value.eval(r)
			if err != nil {
				return err
			}
			if ok {
				r.ctx[n.name] = v
			}

		case *ifNode:
			done := false
			for _, b := range n.branches {
				v, ok, err := b.cond.eval(r)
				if err != nil {
					return err
				}
				if ok && truthy(v) {
					if err := r.render(b.body); err != nil {
						return err
					}
					done = true
					break
				}
			}
			if !done && n.elseBody != nil {
				if err := r.render(n.elseBody); err != nil {
					return err
				}
			}

		case *foreachNode:
			if err := r.foreach(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *renderer) foreach(n *foreachNode) error {
	v, ok, err := n.list.eval(r)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	items, ok := toList(v)
	if !ok {
		r.logger.Debug().Str("template", r.tmpl.name).Msgf("#foreach over non-iterable %T", v)
		return nil
	}

	prevVar, hadVar := r.ctx[n.varName]
	prevLoop, hadLoop := r.ctx["foreach"]
	defer func() {
		restore(r.ctx, n.varName, prevVar, hadVar)
		restore(r.ctx, "foreach", prevLoop, hadLoop)
	}()

	for i, item := range items {
		r.ctx[n.varName] = item
		r.ctx["foreach"] = map[string]interface{}{
			"index":   int64(i),
			"count":   int64(i + 1),
			"hasNext": i < len(items)-1,
			"first":   i == 0,
			"last":    i == len(items)-1,
		}
		if err := r.render(n.body); err != nil {
			return err
		}
	}
	return nil
}

func restore(ctx Context, key string, v interface{}, had bool) {
	if had {
		ctx[key] = v
		return
	}
	delete(ctx, key)
}

// resolve walks a reference's chain. Any undefined link makes the whole
// reference undefined.
func (r *renderer) resolve(ref *refNode) (interface{}, bool, error) {
	v, ok := r.ctx[ref.name]
	if !ok {
		return nil, false, nil
	}
	for _, c := range ref.chain {
		if v == nil {
			return nil, false, nil
		}
		if !c.method {
			v, ok = property(v, c.name)
			if !ok {
				return nil, false, nil
			}
			continue
		}
		args := make([]interface{}, 0, len(c.args))
		for _, a := range c.args {
			av, aok, err := a.eval(r)
			if err != nil {
				return nil, false, err
			}
			if !aok {
				return nil, false, nil
			}
			args = append(args, av)
		}
		var err error
		v, ok, err = callMethod(v, c.name, args)
		if err != nil {
			return nil, false, r.evalError(ref.pos, "%s.%s: %v", ref.name, c.name, err)
		}
		if !ok {
			return nil, false, nil
		}
	}
	return v, true, nil
}

func (r *renderer) evalError(pos int, format string, args ...interface{}) error {
	line, col := lineCol(r.tmpl.src, pos)
	return &EvalError{Template: r.tmpl.name, Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// truthy follows Velocity: null, false, empty strings and empty collections are false.
func truthy(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int64:
		return v != 0
	case int:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	}
	return true
}

func toString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = toString(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + toString(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

func toInt(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	}
	return 0, false
}

func toList(v interface{}) ([]interface{}, bool) {
	switch v := v.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = v[k]
		}
		return out, true
	}
	return nil, false
}
