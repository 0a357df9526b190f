// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// QueryInt parses an optional integer query parameter. An empty string
// yields def; ok is false only when s is present but not an integer.
//
// Example:
//
//	n, ok := utils.QueryInt("42", 50) // 42, true
//	n, ok = utils.QueryInt("", 50)    // 50, true
//	n, ok = utils.QueryInt("x", 50)   // 0, false
func QueryInt(s string, def int) (n int, ok bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
