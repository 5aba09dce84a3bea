package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// PostSelections maps a user to the set of posts that user may manage.
// Values never contain duplicates; order carries no meaning.
type PostSelections map[ID][]ID

// Get returns the posts selected for user (nil if none).
func (p PostSelections) Get(user ID) []ID {
	return p[user]
}

// Has reports whether post is selected for user.
func (p PostSelections) Has(user, post ID) bool {
	return slices.Contains(p[user], post)
}

// With returns a copy of p with user's selection replaced by posts.
// Duplicates in posts are dropped.
func (p PostSelections) With(user ID, posts []ID) PostSelections {
	out := make(PostSelections, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[user] = Dedupe(posts)
	return out
}

// Dedupe returns ids without duplicates, keeping first occurrences in order.
// The result is never nil.
func Dedupe(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Snapshot is the full local copy of every table plus the post-selection
// relation.
type Snapshot struct {
	Users          []User         `json:"users"`
	Departments    []Department   `json:"departments"`
	Offices        []Office       `json:"offices"`
	Banks          []Bank         `json:"banks"`
	Branches       []BankBranch   `json:"branches"`
	Posts          []Post         `json:"posts"`
	Payscales      []Payscale     `json:"payscales"`
	Employees      []Employee     `json:"employees"`
	PostSelections PostSelections `json:"userPostSelections"`
}

// Table names as they appear in the remote payload.
const (
	TableUsers          = "users"
	TableDepartments    = "departments"
	TableOffices        = "offices"
	TableBanks          = "banks"
	TableBranches       = "branches"
	TablePosts          = "posts"
	TablePayscales      = "payscales"
	TableEmployees      = "employees"
	TablePostSelections = "userPostSelections"
)

// Tables lists the entity table names in canonical order.
var Tables = []string{
	TableUsers,
	TableDepartments,
	TableOffices,
	TableBanks,
	TableBranches,
	TablePosts,
	TablePayscales,
	TableEmployees,
}

// Empty returns the canonical empty snapshot: every table present and empty.
func Empty() Snapshot {
	return Snapshot{
		Users:          []User{},
		Departments:    []Department{},
		Offices:        []Office{},
		Banks:          []Bank{},
		Branches:       []BankBranch{},
		Posts:          []Post{},
		Payscales:      []Payscale{},
		Employees:      []Employee{},
		PostSelections: PostSelections{},
	}
}

// Normalize replaces missing tables with empty ones so callers never observe
// a nil table.
func (s Snapshot) Normalize() Snapshot {
	if s.Users == nil {
		s.Users = []User{}
	}
	if s.Departments == nil {
		s.Departments = []Department{}
	}
	if s.Offices == nil {
		s.Offices = []Office{}
	}
	if s.Banks == nil {
		s.Banks = []Bank{}
	}
	if s.Branches == nil {
		s.Branches = []BankBranch{}
	}
	if s.Posts == nil {
		s.Posts = []Post{}
	}
	if s.Payscales == nil {
		s.Payscales = []Payscale{}
	}
	if s.Employees == nil {
		s.Employees = []Employee{}
	}
	if s.PostSelections == nil {
		s.PostSelections = PostSelections{}
	}
	return s
}

// Clone returns a copy of s whose tables can be modified independently.
// Extra maps are shared; they are never modified after decoding.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Users:          slices.Clone(s.Users),
		Departments:    slices.Clone(s.Departments),
		Offices:        slices.Clone(s.Offices),
		Banks:          slices.Clone(s.Banks),
		Branches:       slices.Clone(s.Branches),
		Posts:          slices.Clone(s.Posts),
		Payscales:      slices.Clone(s.Payscales),
		Employees:      slices.Clone(s.Employees),
		PostSelections: make(PostSelections, len(s.PostSelections)),
	}
	for k, v := range s.PostSelections {
		out.PostSelections[k] = slices.Clone(v)
	}
	return out.Normalize()
}

// Decode parses a cached snapshot document, merging it over Empty so that
// tables absent from data come back empty.
func Decode(data []byte) (Snapshot, error) {
	s := Empty()
	if err := json.Unmarshal(data, &s); err != nil {
		return Empty(), fmt.Errorf("decode snapshot: %w", err)
	}
	return s.Normalize(), nil
}

// Raw converts s back into the loosely-typed document shape the remote store
// speaks. Numbers decode as json.Number.
func (s Snapshot) Raw() (map[string]any, error) {
	data, err := json.Marshal(s.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return raw, nil
}

// Upload columns carried by an employee write. They are never stored.
const (
	PhotoDataField = "photoData"
	FileDataField  = "fileData"
)

// IsTransientField reports whether an employee column is an upload payload.
func IsTransientField(name string) bool {
	return strings.EqualFold(name, PhotoDataField) || strings.EqualFold(name, FileDataField)
}

// WithoutTransient returns s with upload payload columns removed from every
// employee row.
func (s Snapshot) WithoutTransient() Snapshot {
	var employees []Employee
	for i, e := range s.Employees {
		if !hasTransient(e.Extra) {
			continue
		}
		if employees == nil {
			employees = slices.Clone(s.Employees)
		}
		extra := make(Fields, len(e.Extra))
		for k, v := range e.Extra {
			if !IsTransientField(k) {
				extra[k] = v
			}
		}
		if len(extra) == 0 {
			extra = nil
		}
		employees[i].Extra = extra
	}
	if employees != nil {
		s.Employees = employees
	}
	return s
}

func hasTransient(f Fields) bool {
	for k := range f {
		if IsTransientField(k) {
			return true
		}
	}
	return false
}
