// Package boolparse centralizes the defensive coercions the enrollment
// portal's JSON forces on every caller: status fields arrive as native
// booleans, integers, or stringly-typed "0"/"1", depending on which endpoint
// answered and which release of the portal is live.
//
// Every other package sees only canonical bool/int values; nothing downstream
// of this package should ever re-implement one of these coercions.
package boolparse

import (
	"strconv"
	"strings"
)

// Bool coerces a heterogeneously-encoded JSON value into a bool.
// Accepted encodings: native bool, numeric 0/1 (any JSON number type),
// string "0"/"1"/"true"/"false" (case-insensitive), and nil/missing which
// defaults to false.
func Bool(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		switch s {
		case "1", "true", "yes":
			return true
		case "", "0", "false", "no":
			return false
		default:
			return false
		}
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	default:
		return false
	}
}

// Int coerces a heterogeneously-encoded JSON value into an int.
// Non-numeric, unparseable, or missing values return (0, false).
func Int(v interface{}) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return int(t), true
	case float32:
		return int(t), true
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IntOr is Int with a fallback for the not-present/unparseable case.
func IntOr(v interface{}, fallback int) int {
	n, ok := Int(v)
	if !ok {
		return fallback
	}
	return n
}
