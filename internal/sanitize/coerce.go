package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/emsync/internal/model"
)

// idAliases are identifier columns that do not follow the _ID suffix rule,
// plus camel-case spellings seen in hand-edited sheets. Keys are lower-case.
var idAliases = map[string]bool{
	"ac_no":        true,
	"acc_no":       true,
	"account_no":   true,
	"bankid":       true,
	"userid":       true,
	"postid":       true,
	"payid":        true,
	"departmentid": true,
	"officeid":     true,
	"branchid":     true,
	"employeeid":   true,
}

var roleFields = map[string]bool{
	"user_type": true,
	"role":      true,
	"user_role": true,
}

var yesNoFields = map[string]bool{
	"active":    true,
	"finalized": true,
	"pwd":       true,
}

// IsIDField reports whether the column name holds an identifier.
func IsIDField(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "_id") || idAliases[lower]
}

func isRoleField(name string) bool {
	return roleFields[strings.ToLower(name)]
}

func isYesNoField(name string) bool {
	return yesNoFields[strings.ToLower(name)]
}

// fold trims, NFC-normalizes and case-folds s for comparison.
// A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// NormalizeRole maps a role cell onto RoleAdmin or RoleNormal.
// Unrecognized values are returned unchanged.
func NormalizeRole(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return v, false
	}
	switch fold(s) {
	case "admin":
		return string(model.RoleAdmin), true
	case "normal":
		return string(model.RoleNormal), true
	}
	return v, false
}

func normalizeYesNo(v any) (any, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return model.Yes, true
		}
		return model.No, true
	case string:
		switch fold(val) {
		case "yes", "y", "true":
			return model.Yes, true
		case "no", "n", "false":
			return model.No, true
		}
	}
	return v, false
}

// isBlank reports whether v is an empty cell that must not be coerced.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// coerceInt converts a cell to a non-negative floored integer.
func coerceInt(v any) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		return parseToken(string(val))
	case string:
		return parseToken(strings.TrimSpace(val))
	case float64:
		return floorFloat(val)
	case float32:
		return floorFloat(float64(val))
	case int:
		return nonNegative(int64(val))
	case int64:
		return nonNegative(val)
	case int32:
		return nonNegative(int64(val))
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint32:
		return int64(val), true
	case model.ID:
		return nonNegative(int64(val))
	}
	return 0, false
}

func parseToken(s string) (int64, bool) {
	s = strings.Trim(s, `"' `)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return nonNegative(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floorFloat(f)
}

func floorFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	if f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func nonNegative(n int64) (int64, bool) {
	if n < 0 {
		return 0, false
	}
	return n, true
}
