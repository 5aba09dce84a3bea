package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ID is a numeric entity identifier.
//
// IDs are always non-negative. The zero value is PendingID.
type ID int64

// PendingID is the sentinel identifier for a record the remote store has not
// yet assigned an identifier to.
const PendingID ID = 0

// IsPending reports whether id is the pending sentinel.
func (id ID) IsPending() bool {
	return id == PendingID
}

// String returns the decimal form of id.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts numbers and numeric strings.
//
// Fractional values are floored. Empty strings, null, negative numbers and
// anything unparseable decode to PendingID rather than failing the enclosing
// record: a single bad cell must never make a whole row unreadable.
func (id *ID) UnmarshalJSON(data []byte) error {
	v, ok := parseIDToken(data)
	if !ok {
		*id = PendingID
		return nil
	}
	*id = ID(v)
	return nil
}

// ParseID parses s as an identifier using the same rules as UnmarshalJSON.
func ParseID(s string) (ID, bool) {
	v, ok := parseNumber(strings.TrimSpace(s))
	if !ok {
		return PendingID, false
	}
	return ID(v), true
}

func parseIDToken(data []byte) (int64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, false
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, false
		}
		return parseNumber(strings.TrimSpace(s))
	}
	return parseNumber(string(data))
}

// parseNumber parses an integer or decimal literal and floors it.
// Negative, non-finite and out-of-range values are rejected.
func parseNumber(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	if f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Text is a string column that tolerates numeric and boolean cells.
//
// Spreadsheet cells holding phone numbers, account codes or dates frequently
// arrive as JSON numbers; Text keeps their literal form.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		// Numbers, booleans and nested structures keep their literal form.
		*t = Text(data)
	}
	return nil
}

// String returns t as a plain string.
func (t Text) String() string {
	return string(t)
}
