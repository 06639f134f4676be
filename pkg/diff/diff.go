// Package diff renders want/got differences for test failures.
package diff

import (
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
)

// Pretty pretty-prints both values and returns a line diff, or "" when they print the same.
// Only exported fields are compared.
func Pretty[T any](want T, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)

	a, b := printer.Sprint(got), printer.Sprint(want)
	if a == b {
		return ""
	}
	d := diff.Diff(a, b)

	var sb strings.Builder
	sb.WriteString("\n\nto convert ACTUAL ⏩️ EXPECTED:\n\n")
	sb.WriteString("add:    ➕\n")
	sb.WriteString("remove: ➖\n\n")
	sb.WriteString(strings.ReplaceAll(strings.ReplaceAll(d, "\n-", "\n➖"), "\n+", "\n➕"))
	return sb.String()
}

// Lines renders each line of a multi-line value on its own and diffs the results, which reads
// better than Pretty for long slices of short records.
func Lines[T any](want, got []T, format func(T) string) string {
	render := func(items []T) string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = format(item)
		}
		return strings.Join(out, "\n")
	}

	a, b := render(got), render(want)
	if a == b {
		return ""
	}
	return "\n" + diff.Diff(a, b)
}
