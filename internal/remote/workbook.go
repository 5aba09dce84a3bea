package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/emsync/internal/model"
)

// Workbook is a store backed by a local .xlsx file.
//
// Each entity table is a sheet named after the table with a header row of
// column names. The post-selection relation lives in a sheet with User_ID and
// Post_IDs columns, Post_IDs holding a JSON array. The store assigns ids
// sequentially (max + 1) to rows written with the pending id 0, as the hosted
// spreadsheet script does.
//
// Every write rewrites the whole file.
//
// Thread-safety: Workbook is safe for concurrent use via internal mutex.
type Workbook struct {
	mu   sync.Mutex
	path string
}

// Post-selection sheet columns.
const (
	colUserID  = "User_ID"
	colPostIDs = "Post_IDs"
)

// OpenWorkbook returns a store for the file at path, creating an empty
// workbook with one sheet per table if it does not exist.
func OpenWorkbook(path string) (*Workbook, error) {
	w := &Workbook{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := w.save(newSheets()); err != nil {
			return nil, fmt.Errorf("create workbook: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return w, nil
}

// Path returns the workbook file path.
func (w *Workbook) Path() string { return w.path }

// Fetch reads every sheet into the loose snapshot document shape.
func (w *Workbook) Fetch(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Code: CodeTransport, Op: "fetch", Message: "canceled", Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sheets, err := w.load()
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: "fetch", Message: err.Error(), Err: err}
	}

	doc := make(map[string]any, len(sheets))
	for name, sh := range sheets {
		rows := make([]any, 0, len(sh.rows))
		for _, r := range sh.rows {
			rows = append(rows, r.object(sh.header))
		}
		doc[name] = rows
	}
	return doc, nil
}

// Write applies one action to the workbook.
func (w *Workbook) Write(ctx context.Context, req WriteRequest) (WriteResponse, error) {
	if err := ctx.Err(); err != nil {
		return WriteResponse{}, &Error{Code: CodeTransport, Op: "write", Message: "canceled", Err: err}
	}
	if !req.Action.Valid() {
		return WriteResponse{}, rejected("unknown action %q", req.Action)
	}
	payload, err := toObject(req.Payload)
	if err != nil {
		return WriteResponse{}, rejected("%v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sheets, err := w.load()
	if err != nil {
		return WriteResponse{}, &Error{Code: CodeTransport, Op: "write", Message: err.Error(), Err: err}
	}

	var resp WriteResponse
	switch {
	case req.Action == model.ActionUpdateUserPostSelections:
		err = updateSelections(sheets, payload)
	case req.Action.IsUpsert():
		resp.Data, err = upsertRow(sheets, req.Action.Kind(), payload)
	case req.Action.IsDelete():
		err = deleteRows(sheets, req.Action.Kind(), payload)
	}
	if err != nil {
		return WriteResponse{}, err
	}

	if err := w.save(sheets); err != nil {
		return WriteResponse{}, &Error{Code: CodeTransport, Op: "write", Message: err.Error(), Err: err}
	}
	return resp, nil
}

func rejected(format string, args ...any) *Error {
	return &Error{Code: CodeRejected, Op: "write", Message: fmt.Sprintf(format, args...)}
}

// sheet is one table in memory. Cells are kept as strings, as read.
type sheet struct {
	header []string
	rows   []row
}

type row map[string]string

func (r row) object(header []string) map[string]any {
	obj := make(map[string]any, len(r))
	for _, h := range header {
		if v, ok := r[h]; ok {
			obj[h] = v
		}
	}
	return obj
}

// column adds name to the header if missing.
func (s *sheet) column(name string) {
	if !slices.Contains(s.header, name) {
		s.header = append(s.header, name)
	}
}

func (s *sheet) idOf(r row, field string) model.ID {
	id, _ := model.ParseID(r[field])
	return id
}

func sheetNames() []string {
	return append(slices.Clone(model.Tables), model.TablePostSelections)
}

func newSheets() map[string]*sheet {
	out := make(map[string]*sheet)
	for _, name := range sheetNames() {
		out[name] = &sheet{}
	}
	out[model.TablePostSelections].header = []string{colUserID, colPostIDs}
	return out
}

// load reads every known sheet. Missing sheets come back empty.
func (w *Workbook) load() (map[string]*sheet, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", w.path, err)
	}
	defer f.Close()

	sheets := newSheets()
	present := f.GetSheetList()
	for name, sh := range sheets {
		if !slices.Contains(present, name) {
			continue
		}
		cells, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if len(cells) == 0 {
			continue
		}
		sh.header = nil
		for _, h := range cells[0] {
			sh.header = append(sh.header, strings.TrimSpace(h))
		}
		for _, line := range cells[1:] {
			r := make(row)
			for i, v := range line {
				if i < len(sh.header) && sh.header[i] != "" && v != "" {
					r[sh.header[i]] = v
				}
			}
			if len(r) > 0 {
				sh.rows = append(sh.rows, r)
			}
		}
	}
	return sheets, nil
}

// save writes every sheet to a temporary file and renames it into place.
func (w *Workbook) save(sheets map[string]*sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheetNames() {
		idx, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		sh := sheets[name]
		if len(sh.header) == 0 {
			continue
		}
		if err := writeLine(f, name, 1, sh.header); err != nil {
			return err
		}
		for j, r := range sh.rows {
			line := make([]string, len(sh.header))
			for k, h := range sh.header {
				line[k] = r[h]
			}
			if err := writeLine(f, name, j+2, line); err != nil {
				return err
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(w.path), "."+filepath.Base(w.path)+".tmp")
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replace %s: %w", w.path, err)
	}
	return nil
}

func writeLine(f *excelize.File, sheetName string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	line := make([]any, len(values))
	for i, v := range values {
		line[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &line); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheetName, rowNum, err)
	}
	return nil
}

// upsertRow stores payload in the kind's sheet and returns the stored
// record with its assigned id.
func upsertRow(sheets map[string]*sheet, kind model.Kind, payload map[string]any) (map[string]any, error) {
	field := kind.IDField()
	sh := sheets[kind.Table()]

	id, _ := model.ParseID(cellString(lookupField(payload, field)))
	if id.IsPending() {
		var maxID model.ID
		for _, r := range sh.rows {
			maxID = max(maxID, sh.idOf(r, field))
		}
		id = maxID + 1
	}

	stored := make(row, len(payload))
	stored[field] = id.String()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if strings.EqualFold(k, field) || model.IsTransientField(k) {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	sh.column(field)
	for _, k := range keys {
		sh.column(k)
		stored[k] = cellString(payload[k])
	}

	replaced := false
	for i, r := range sh.rows {
		if sh.idOf(r, field) == id {
			sh.rows[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		sh.rows = append(sh.rows, stored)
	}

	return stored.object(sh.header), nil
}

func deleteRows(sheets map[string]*sheet, kind model.Kind, payload map[string]any) error {
	field := kind.IDField()
	sh := sheets[kind.Table()]

	id, ok := model.ParseID(cellString(lookupField(payload, field)))
	if !ok || id.IsPending() {
		return rejected("delete needs %s", field)
	}
	sh.rows = slices.DeleteFunc(sh.rows, func(r row) bool {
		return sh.idOf(r, field) == id
	})
	return nil
}

func updateSelections(sheets map[string]*sheet, payload map[string]any) error {
	sh := sheets[model.TablePostSelections]

	user, ok := model.ParseID(cellString(lookupField(payload, colUserID)))
	if !ok || user.IsPending() {
		return rejected("updateUserPostSelections needs %s", colUserID)
	}
	var posts []model.ID
	if raw := lookupField(payload, colPostIDs); raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return rejected("%s must be an array", colPostIDs)
		}
		for _, v := range list {
			if id, ok := model.ParseID(cellString(v)); ok && !id.IsPending() {
				posts = append(posts, id)
			}
		}
	}
	encoded, err := json.Marshal(model.Dedupe(posts))
	if err != nil {
		return rejected("%v", err)
	}

	sh.column(colUserID)
	sh.column(colPostIDs)
	for _, r := range sh.rows {
		if sh.idOf(r, colUserID) == user {
			r[colPostIDs] = string(encoded)
			return nil
		}
	}
	sh.rows = append(sh.rows, row{colUserID: user.String(), colPostIDs: string(encoded)})
	return nil
}

func lookupField(m map[string]any, name string) any {
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

// cellString renders a payload value as a cell.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case model.ID:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
