package command

import (
	"slices"
	"strings"
)

// operandCount is the number of leading elements (executable, source, dest)
// that precede the options tail.
const operandCount = 3

// Args is the rendered argument vector:
// [executable, source, dest, option...].
type Args []string

// Executable returns the first element.
func (a Args) Executable() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// Options returns the options tail.
func (a Args) Options() []string {
	if len(a) <= operandCount {
		return nil
	}
	return a[operandCount:]
}

// HasOption reports whether entry is present in the options tail.
func (a Args) HasOption(entry string) bool {
	return slices.Contains(a.Options(), entry)
}

// String joins the vector with single spaces.
func (a Args) String() string {
	return strings.Join(a, " ")
}

// Build renders spec into an argument vector. It repeats the remote
// exclusivity check so a Spec mutated after NewSpec cannot slip through.
// Duplicate rendered options keep their first occurrence.
func Build(spec *Spec) (Args, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	args := Args{
		spec.executable(),
		formatOperand(spec.Source, spec.SourceRemote),
		FormatPath(Single(spec.Dest), spec.DestRemote),
	}
	for _, opt := range spec.Options {
		args = AddOption(args, opt.Name, opt.Value)
	}
	return args, nil
}

// AddOption renders the option and appends the entries not already present
// in args, preserving order. Calling it twice with the same arguments leaves
// the vector unchanged the second time, whatever its length.
func AddOption(args Args, name string, v Value) Args {
	args = slices.Clip(args)
	for _, entry := range RenderOption(name, v) {
		if slices.Contains(args, entry) {
			continue
		}
		args = append(args, entry)
	}
	return args
}

// Argv converts a rendered vector into the tokens handed to the operating
// system. Operands come from spec so that paths containing spaces survive,
// with every element of a collection passed as its own operand. Each option
// entry is split at its first space into flag and value.
func Argv(spec *Spec, args Args) []string {
	out := []string{args.Executable()}
	out = append(out, operandTokens(spec.Source, spec.SourceRemote)...)
	out = append(out, FormatPath(Single(spec.Dest), spec.DestRemote))
	for _, entry := range args.Options() {
		flag, value, found := strings.Cut(entry, " ")
		if !found {
			out = append(out, entry)
			continue
		}
		out = append(out, flag, value)
	}
	return out
}
