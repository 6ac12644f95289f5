//go:build !windows

package bridge

import "strings"

// CommandLine renders req for logging. Arguments holding whitespace or quotes
// are double quoted.
func (r Request) CommandLine() string {
	parts := make([]string, 0, len(r.Args)+1)
	for _, a := range append([]string{r.Path}, r.Args...) {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
