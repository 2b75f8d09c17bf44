// Package utils provides utility functions for the application.
package utils

import "unicode/utf8"

func ToPtr[T any](v T) *T {
	return &v
}

// Deref returns the pointed value or def when p is nil
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// TruncateBytes cuts s to at most max bytes without splitting a UTF-8 sequence
func TruncateBytes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
