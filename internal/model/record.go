package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Fields holds columns of a record that have no typed field.
// Numbers are kept as json.Number so no precision is lost.
type Fields map[string]any

// fieldNameCache maps a struct type to the lower-cased JSON names of its fields.
var fieldNameCache sync.Map

func knownFieldNames(t reflect.Type) map[string]bool {
	if cached, ok := fieldNameCache.Load(t); ok {
		return cached.(map[string]bool)
	}
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		// encoding/json matches keys case-insensitively, so extras must too.
		names[strings.ToLower(name)] = true
	}
	fieldNameCache.Store(t, names)
	return names
}

// marshalRecord encodes the typed fields of known and merges extra on top.
// Typed fields win when a key appears in both.
func marshalRecord(known any, extra Fields) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	names := knownFieldNames(reflect.TypeOf(known))
	for k, v := range extra {
		if names[strings.ToLower(k)] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal extra field %q: %w", k, err)
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// unmarshalRecord decodes data into known (a pointer to a struct) and
// returns every column that has no typed field.
func unmarshalRecord(data []byte, known any) (Fields, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	names := knownFieldNames(reflect.TypeOf(known).Elem())

	var extra Fields
	for k, raw := range all {
		if names[strings.ToLower(k)] {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode extra field %q: %w", k, err)
		}
		if extra == nil {
			extra = make(Fields)
		}
		extra[k] = v
	}
	return extra, nil
}
