package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/emsync/internal/model"
)

// Skip records a single coercion that was not applied.
type Skip struct {
	Table  string
	Row    int // -1 when the whole table or relation was affected
	Field  string
	Reason string
}

func (s Skip) String() string {
	if s.Row < 0 {
		return fmt.Sprintf("%s: %s", s.Table, s.Reason)
	}
	if s.Field == "" {
		return fmt.Sprintf("%s[%d]: %s", s.Table, s.Row, s.Reason)
	}
	return fmt.Sprintf("%s[%d].%s: %s", s.Table, s.Row, s.Field, s.Reason)
}

// Report lists the coercions skipped during a sanitize pass.
type Report struct {
	Skips []Skip
}

func (r *Report) add(table string, row int, field, reason string) {
	if r == nil {
		return
	}
	r.Skips = append(r.Skips, Skip{Table: table, Row: row, Field: field, Reason: reason})
}

// Sanitize converts a raw remote payload into a typed snapshot.
//
// raw may be a decoded JSON document (map[string]any), JSON bytes, a JSON
// string, a model.Snapshot, or any value that encodes to a JSON object.
// Anything unusable yields the empty snapshot.
func Sanitize(raw any) model.Snapshot {
	s, _ := Run(raw)
	return s
}

// Run is Sanitize plus the list of skipped coercions.
func Run(raw any) (model.Snapshot, Report) {
	var rep Report

	doc, ok := document(raw)
	if !ok {
		rep.add("snapshot", -1, "", "payload is not a JSON object")
		return model.Empty(), rep
	}

	s := model.Empty()
	s.Users = table[model.User](doc, model.TableUsers, &rep)
	s.Departments = table[model.Department](doc, model.TableDepartments, &rep)
	s.Offices = table[model.Office](doc, model.TableOffices, &rep)
	s.Banks = table[model.Bank](doc, model.TableBanks, &rep)
	s.Branches = table[model.BankBranch](doc, model.TableBranches, &rep)
	s.Posts = table[model.Post](doc, model.TablePosts, &rep)
	s.Payscales = table[model.Payscale](doc, model.TablePayscales, &rep)
	s.Employees = table[model.Employee](doc, model.TableEmployees, &rep)
	s.PostSelections = selections(doc[model.TablePostSelections], &rep)

	return s, rep
}

// IsPayload reports whether raw can be read as a snapshot document at all.
func IsPayload(raw any) bool {
	_, ok := document(raw)
	return ok
}

// Record sanitizes a single row into T, one of the model entity types.
func Record[T any](raw any) (T, error) {
	var rec T
	m, ok := object(raw)
	if !ok {
		return rec, fmt.Errorf("sanitize record: %T is not a JSON object", raw)
	}
	return decodeRow[T](cleanRow(m, "record", 0, nil))
}

// Identity sanitizes a stored or submitted session user. ok is false when
// the value carries no usable User_ID.
func Identity(raw any) (model.Identity, bool) {
	u, err := Record[model.User](raw)
	if err != nil || u.UserID.IsPending() {
		return model.Identity{}, false
	}
	return model.IdentityOf(u), true
}

// NormalizeIdentity applies role normalization to an identity built in code.
func NormalizeIdentity(id model.Identity) model.Identity {
	if r, ok := NormalizeRole(string(id.UserType)); ok {
		id.UserType = model.Role(r.(string))
	}
	id.UserName = model.Text(norm.NFC.String(string(id.UserName)))
	return id
}

// document canonicalizes raw into a decoded JSON object.
func document(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case model.Snapshot:
		m, err := v.Raw()
		return m, err == nil
	}
	return object(raw)
}

// object canonicalizes raw into a decoded JSON object with json.Number
// numbers. Go values are passed through an encode/decode round trip so
// nested []map[string]any and friends look exactly like decoded JSON.
func object(raw any) (map[string]any, bool) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, false
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			m, ok := raw.(map[string]any)
			return m, ok
		}
	}
	decoded, ok := decodeJSON(data)
	if !ok {
		return nil, false
	}
	m, ok := decoded.(map[string]any)
	return m, ok
}

func decodeJSON(data []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}

func table[T any](doc map[string]any, name string, rep *Report) []T {
	out := []T{}
	v, ok := doc[name]
	if !ok || v == nil {
		return out
	}
	rows, ok := v.([]any)
	if !ok {
		rep.add(name, -1, "", "table is not an array")
		return out
	}
	for i, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			rep.add(name, i, "", "row is not an object")
			continue
		}
		rec, err := decodeRow[T](cleanRow(m, name, i, rep))
		if err != nil {
			rep.add(name, i, "", err.Error())
			continue
		}
		out = append(out, rec)
	}
	return out
}

// cleanRow applies the per-column rules to one row. The input is not modified.
func cleanRow(m map[string]any, tableName string, row int, rep *Report) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case IsIDField(k):
			if isBlank(v) {
				out[k] = v
				continue
			}
			n, ok := coerceInt(v)
			if !ok {
				rep.add(tableName, row, k, fmt.Sprintf("cannot coerce %v to an identifier", v))
				out[k] = v
				continue
			}
			out[k] = n
		case isRoleField(k):
			out[k], _ = NormalizeRole(v)
		case isYesNoField(k):
			out[k], _ = normalizeYesNo(v)
		default:
			if s, ok := v.(string); ok {
				out[k] = norm.NFC.String(s)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func decodeRow[T any](m map[string]any) (T, error) {
	var rec T
	data, err := json.Marshal(m)
	if err != nil {
		return rec, fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode row: %w", err)
	}
	return rec, nil
}

// maxNesting bounds recursion into nested arrays and JSON-in-strings.
const maxNesting = 8

// selections parses the user → posts relation.
//
// Accepted shapes: an object keyed by user id (values in any encoding
// postIDs understands), a JSON string holding such an object, or a list of
// {User_ID, Post_IDs} rows as a spreadsheet sheet would produce.
func selections(v any, rep *Report) model.PostSelections {
	out := model.PostSelections{}

	if s, ok := v.(string); ok {
		decoded, ok := decodeJSON([]byte(s))
		if !ok {
			rep.add(model.TablePostSelections, -1, "", "relation string is not JSON")
			return out
		}
		v = decoded
	}

	switch val := v.(type) {
	case nil:
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(val)) {
			user, ok := parseToken(k)
			if !ok || user == 0 {
				rep.add(model.TablePostSelections, -1, k, "invalid user key")
				continue
			}
			id := model.ID(user)
			out[id] = append(out[id], postIDs(val[k], model.TablePostSelections, rep)...)
		}
	case []any:
		for i, row := range val {
			m, ok := row.(map[string]any)
			if !ok {
				rep.add(model.TablePostSelections, i, "", "row is not an object")
				continue
			}
			userRaw, posts := lookup(m, "User_ID"), lookup(m, "Post_IDs")
			if posts == nil {
				posts = lookup(m, "Post_ID")
			}
			user, ok := coerceInt(userRaw)
			if !ok || user == 0 {
				rep.add(model.TablePostSelections, i, "User_ID", "invalid user id")
				continue
			}
			id := model.ID(user)
			out[id] = append(out[id], postIDs(posts, model.TablePostSelections, rep)...)
		}
	default:
		rep.add(model.TablePostSelections, -1, "", fmt.Sprintf("unsupported relation type %T", v))
	}

	for k, ids := range out {
		out[k] = model.Dedupe(ids)
	}
	return out
}

// lookup finds a column by case-insensitive name.
func lookup(m map[string]any, name string) any {
	if v, ok := m[name]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// postIDs flattens one user's selection value into identifiers.
//
// Arrays are flattened recursively. A bracketed string is parsed as a JSON
// array, falling back to stripping the brackets and splitting on commas. An
// unbracketed string with commas is split; anything else is read as a
// single scalar. Every value is floored; non-numeric and non-positive tokens
// are discarded.
func postIDs(v any, tableName string, rep *Report) []model.ID {
	out := []model.ID{}

	add := func(n int64, ok bool, token any) {
		if !ok || n <= 0 {
			rep.add(tableName, -1, "", fmt.Sprintf("discarded post id %v", token))
			return
		}
		out = append(out, model.ID(n))
	}
	addToken := func(tok string) {
		tok = strings.Trim(tok, "[]\"' \t")
		if tok == "" {
			return
		}
		n, ok := parseToken(tok)
		add(n, ok, tok)
	}

	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > maxNesting {
			rep.add(tableName, -1, "", "selection nested too deeply")
			return
		}
		switch val := v.(type) {
		case nil:
		case []any:
			for _, e := range val {
				walk(e, depth+1)
			}
		case string:
			s := strings.TrimSpace(val)
			switch {
			case s == "":
			case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
				if decoded, ok := decodeJSON([]byte(s)); ok {
					if arr, ok := decoded.([]any); ok {
						walk(arr, depth+1)
						return
					}
				}
				for _, tok := range strings.Split(s[1:len(s)-1], ",") {
					addToken(tok)
				}
			case strings.Contains(s, ","):
				for _, tok := range strings.Split(s, ",") {
					addToken(tok)
				}
			default:
				addToken(s)
			}
		default:
			n, ok := coerceInt(val)
			add(n, ok, val)
		}
	}
	walk(v, 0)
	return out
}

// IDOf reads the identifier column name from a row. ok is false when the
// column is missing, blank or not a valid identifier.
func IDOf(raw any, name string) (model.ID, bool) {
	m, ok := object(raw)
	if !ok {
		return model.PendingID, false
	}
	v := lookup(m, name)
	if isBlank(v) {
		return model.PendingID, false
	}
	n, ok := coerceInt(v)
	return model.ID(n), ok
}

// Selection sanitizes one {User_ID, Post_IDs} row, accepting every post
// list encoding the relation parser accepts. ok is false without a usable
// User_ID.
func Selection(raw any) (user model.ID, posts []model.ID, ok bool) {
	m, isObj := object(raw)
	if !isObj {
		return model.PendingID, nil, false
	}
	n, ok := coerceInt(lookup(m, "User_ID"))
	if !ok || n == 0 {
		return model.PendingID, nil, false
	}
	return model.ID(n), model.Dedupe(postIDs(lookup(m, "Post_IDs"), model.TablePostSelections, nil)), true
}
