// Package strings carries the small string helpers the module wiring leans on
package strings

import std "strings"

// IfEmpty returns def when in has no elements, otherwise in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// Contains reports whether sub occurs within s
func Contains(s, sub string) bool { return std.Contains(s, sub) }

// MustString panics when s is blank; name identifies the missing value in the
// panic message
func MustString(s string, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// MustPrefix normalizes a module route prefix like /opcheck or /review:
// exactly one leading slash, no trailing slash. Panics on a blank or
// root-only input
func MustPrefix(s string) string {
	s = std.TrimSpace(s)
	s = "/" + std.Trim(s, " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}
