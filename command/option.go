package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

type valueKind int

const (
	kindFlag valueKind = iota
	kindScalar
	kindList
)

// Value is the argument of a named option: a flag (no value), a single
// scalar, or a list that renders one entry per element.
// The zero Value is a flag.
type Value struct {
	kind  valueKind
	items []string
}

// Flag returns a value-less option ("set, no value").
func Flag() Value {
	return Value{kind: kindFlag}
}

// String returns a scalar option value.
func String(s string) Value {
	return Value{kind: kindScalar, items: []string{s}}
}

// Int returns a scalar option value holding n.
func Int(n int) Value {
	return String(strconv.Itoa(n))
}

// List returns a collection value. Each element renders as its own entry,
// and an empty list renders nothing.
func List(items ...string) Value {
	return Value{kind: kindList, items: append([]string(nil), items...)}
}

// IsFlag reports whether v carries no value.
func (v Value) IsFlag() bool { return v.kind == kindFlag }

// ValueOf converts a loosely typed value, as decoded from YAML or TOML, into
// a Value. true becomes a flag; false reports ok=false so the caller can omit
// the option entirely.
func ValueOf(raw any) (v Value, ok bool, err error) {
	switch x := raw.(type) {
	case nil:
		return Flag(), true, nil
	case bool:
		if !x {
			return Value{}, false, nil
		}
		return Flag(), true, nil
	case string:
		return String(x), true, nil
	case int:
		return Int(x), true, nil
	case int64:
		return String(strconv.FormatInt(x, 10)), true, nil
	case float64:
		return String(strconv.FormatFloat(x, 'f', -1, 64)), true, nil
	case []string:
		return List(x...), true, nil
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			switch item.(type) {
			case string, int, int64, float64, bool:
				items = append(items, fmt.Sprint(item))
			default:
				return Value{}, false, errors.Newf(errors.CodeInvalidConfig, "unsupported list element of type %T", item)
			}
		}
		return List(items...), true, nil
	default:
		return Value{}, false, errors.Newf(errors.CodeInvalidConfig, "unsupported option value of type %T", raw)
	}
}

// Option is one named option in insertion order.
type Option struct {
	Name  string
	Value Value
}

// NormalizeName replaces underscores with hyphens.
func NormalizeName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// optionFlag returns the prefixed flag for name: "-n" for single-character
// names, "--name" otherwise.
func optionFlag(name string) string {
	name = NormalizeName(name)
	if len([]rune(name)) == 1 {
		return "-" + name
	}
	return "--" + name
}

// RenderOption renders one option into its argument-vector entries:
//
//	RenderOption("verbose", Flag())           -> ["--verbose"]
//	RenderOption("v", Flag())                 -> ["-v"]
//	RenderOption("exclude", List("x", "y"))   -> ["--exclude x", "--exclude y"]
//	RenderOption("backup_dir", String("/tmp")) -> ["--backup-dir /tmp"]
//
// Normalization applies to the name only, never to values.
func RenderOption(name string, v Value) []string {
	flag := optionFlag(name)
	switch v.kind {
	case kindScalar:
		return []string{flag + " " + v.items[0]}
	case kindList:
		out := make([]string, 0, len(v.items))
		for _, item := range v.items {
			out = append(out, flag+" "+item)
		}
		return out
	default:
		return []string{flag}
	}
}

// ValidateName rejects option names that cannot be rendered into a single
// flag token.
func ValidateName(name string) error {
	if name == "" {
		return errors.New(errors.CodeInvalidConfig, "option name is empty")
	}
	if strings.HasPrefix(name, "-") {
		return errors.NewWithContext(errors.CodeInvalidConfig, "option name must not carry a dash prefix",
			map[string]any{"option": name})
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errors.NewWithContext(errors.CodeInvalidConfig, "option name must not contain whitespace",
			map[string]any{"option": name})
	}
	return nil
}
