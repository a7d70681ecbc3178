package velocity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// javaGroupRef matches $1 style group references in replacement strings.
var javaGroupRef = regexp.MustCompile(`\$(\d+)`)

// property resolves $x.name. Maps are looked up by key; other values expose
// "empty" the way a bean getter would.
func property(v interface{}, name string) (interface{}, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		val, found := m[name]
		return val, found
	}
	if m, ok := v.(map[string]string); ok {
		val, found := m[name]
		return val, found
	}
	if name == "empty" {
		empty, ok, err := callMethod(v, "isEmpty", nil)
		return empty, ok && err == nil
	}
	return nil, false
}

// callMethod invokes a supported method. Unknown methods or argument
// mismatches report false so the reference renders as written. An error
// means the method exists but failed.
func callMethod(v interface{}, name string, args []interface{}) (interface{}, bool, error) {
	if name == "toString" && len(args) == 0 {
		return toString(v), true, nil
	}
	switch v := v.(type) {
	case string:
		return stringMethod(v, name, args)
	case []interface{}:
		return listMethod(v, name, args)
	case []string:
		l, _ := toList(v)
		return listMethod(l, name, args)
	case map[string]interface{}:
		return mapMethod(v, name, args)
	case bool, int64, int:
		if name == "equals" && len(args) == 1 {
			return equal(v, args[0]), true, nil
		}
	}
	return nil, false, nil
}

func stringMethod(s, name string, args []interface{}) (interface{}, bool, error) {
	str := func(i int) (string, bool) {
		if i >= len(args) {
			return "", false
		}
		a, ok := args[i].(string)
		return a, ok
	}

	switch name {
	case "toUpperCase":
		return strings.ToUpper(s), true, nil
	case "toLowerCase":
		return strings.ToLower(s), true, nil
	case "trim":
		return strings.TrimSpace(s), true, nil
	case "length":
		return int64(utf8.RuneCountInString(s)), true, nil
	case "isEmpty":
		return s == "", true, nil
	case "capitalize":
		if s == "" {
			return s, true, nil
		}
		r, size := utf8.DecodeRuneInString(s)
		return string(unicode.ToUpper(r)) + s[size:], true, nil
	case "uncapitalize":
		if s == "" {
			return s, true, nil
		}
		r, size := utf8.DecodeRuneInString(s)
		return string(unicode.ToLower(r)) + s[size:], true, nil
	case "equals":
		if len(args) != 1 {
			return nil, false, nil
		}
		return args[0] != nil && toString(args[0]) == s, true, nil
	case "equalsIgnoreCase":
		a, ok := str(0)
		if !ok {
			return nil, false, nil
		}
		return strings.EqualFold(s, a), true, nil
	case "startsWith", "endsWith", "contains", "indexOf", "lastIndexOf":
		a, ok := str(0)
		if !ok || len(args) != 1 {
			return nil, false, nil
		}
		switch name {
		case "startsWith":
			return strings.HasPrefix(s, a), true, nil
		case "endsWith":
			return strings.HasSuffix(s, a), true, nil
		case "contains":
			return strings.Contains(s, a), true, nil
		case "indexOf":
			return runeIndex(s, strings.Index(s, a)), true, nil
		default:
			return runeIndex(s, strings.LastIndex(s, a)), true, nil
		}
	case "replace":
		from, ok1 := str(0)
		to, ok2 := str(1)
		if !ok1 || !ok2 {
			return nil, false, nil
		}
		return strings.ReplaceAll(s, from, to), true, nil
	case "replaceAll", "replaceFirst":
		pattern, ok1 := str(0)
		repl, ok2 := str(1)
		if !ok1 || !ok2 {
			return nil, false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, false, err
		}
		repl = javaGroupRef.ReplaceAllString(repl, "$${$1}")
		if name == "replaceAll" {
			return re.ReplaceAllString(s, repl), true, nil
		}
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil {
			return s, true, nil
		}
		expanded := re.ExpandString(nil, repl, s, loc)
		return s[:loc[0]] + string(expanded) + s[loc[1]:], true, nil
	case "split":
		pattern, ok := str(0)
		if !ok {
			return nil, false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, false, err
		}
		parts := re.Split(s, -1)
		for len(parts) > 0 && parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, true, nil
	case "substring":
		runes := []rune(s)
		begin, ok := intArg(args, 0)
		if !ok {
			return nil, false, nil
		}
		end := int64(len(runes))
		if len(args) > 1 {
			if end, ok = intArg(args, 1); !ok {
				return nil, false, nil
			}
		}
		if begin < 0 || end > int64(len(runes)) || begin > end {
			return nil, false, fmt.Errorf("index out of range: begin %d, end %d, length %d", begin, end, len(runes))
		}
		return string(runes[begin:end]), true, nil
	case "charAt":
		runes := []rune(s)
		i, ok := intArg(args, 0)
		if !ok {
			return nil, false, nil
		}
		if i < 0 || i >= int64(len(runes)) {
			return nil, false, fmt.Errorf("index out of range: %d", i)
		}
		return string(runes[i]), true, nil
	}
	return nil, false, nil
}

func listMethod(l []interface{}, name string, args []interface{}) (interface{}, bool, error) {
	switch name {
	case "size":
		return int64(len(l)), true, nil
	case "isEmpty":
		return len(l) == 0, true, nil
	case "get":
		i, ok := intArg(args, 0)
		if !ok {
			return nil, false, nil
		}
		if i < 0 || i >= int64(len(l)) {
			return nil, false, fmt.Errorf("index out of range: %d", i)
		}
		return l[i], true, nil
	case "contains":
		if len(args) != 1 {
			return nil, false, nil
		}
		for _, item := range l {
			if equal(item, args[0]) {
				return true, true, nil
			}
		}
		return false, true, nil
	}
	return nil, false, nil
}

func mapMethod(m map[string]interface{}, name string, args []interface{}) (interface{}, bool, error) {
	switch name {
	case "size":
		return int64(len(m)), true, nil
	case "isEmpty":
		return len(m) == 0, true, nil
	case "get", "containsKey":
		if len(args) != 1 {
			return nil, false, nil
		}
		v, ok := m[toString(args[0])]
		if name == "containsKey" {
			return ok, true, nil
		}
		return v, ok, nil
	}
	// getFoo() on a map reads key "foo".
	if strings.HasPrefix(name, "get") && len(name) > 3 && len(args) == 0 {
		key := strings.ToLower(name[3:4]) + name[4:]
		v, ok := m[key]
		return v, ok, nil
	}
	return nil, false, nil
}

func intArg(args []interface{}, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return toInt(args[i])
}

func runeIndex(s string, byteIndex int) int64 {
	if byteIndex < 0 {
		return -1
	}
	return int64(utf8.RuneCountInString(s[:byteIndex]))
}
