package command

import "strings"

// Path is a source or destination operand: either a Single path or a
// (possibly nested) collection of paths. Strings are always atomic.
type Path interface {
	isPath()
}

// Single is one path string.
type Single string

func (Single) isPath() {}

// Paths is an ordered collection of paths. Elements may themselves be
// collections; they are flattened depth-first.
type Paths []Path

func (Paths) isPath() {}

// Strings is a convenience constructor for a flat collection of paths.
func Strings(paths ...string) Paths {
	out := make(Paths, 0, len(paths))
	for _, p := range paths {
		out = append(out, Single(p))
	}
	return out
}

// Flatten returns the path strings contained in p in depth-first order.
// A nil Path yields no elements.
func Flatten(p Path) []string {
	var out []string
	flatten(p, &out)
	return out
}

func flatten(p Path, out *[]string) {
	switch v := p.(type) {
	case Single:
		*out = append(*out, string(v))
	case Paths:
		for _, elem := range v {
			flatten(elem, out)
		}
	}
}

// FormatPath renders p as a single operand string.
//
// A Single is returned unchanged when remote is empty and as "<remote>:<path>"
// otherwise. A collection is flattened and its elements joined with a single
// space; the remote qualifier is not applied to collection elements.
func FormatPath(p Path, remote string) string {
	switch v := p.(type) {
	case Single:
		if remote == "" {
			return string(v)
		}
		return remote + ":" + string(v)
	case Paths:
		return strings.Join(Flatten(v), " ")
	default:
		return ""
	}
}

// operandTokens returns the flattened elements of p, each qualified with
// remote when it is set. This is the convention Build uses so that every
// element of a remote collection names the same host.
func operandTokens(p Path, remote string) []string {
	elems := Flatten(p)
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		out = append(out, FormatPath(Single(e), remote))
	}
	return out
}

// formatOperand is operandTokens joined for display in the argument vector.
func formatOperand(p Path, remote string) string {
	if s, ok := p.(Single); ok {
		return FormatPath(s, remote)
	}
	return strings.Join(operandTokens(p, remote), " ")
}
