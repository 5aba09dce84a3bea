// Package export writes employee lists to xlsx workbooks with foreign keys
// resolved to names.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/emsync/internal/model"
)

// SheetName is the name of the exported sheet.
const SheetName = "Employees"

// Columns is the exported header row.
var Columns = []string{
	"Employee_ID", "Employee_Name", "Employee_Surname", "Gender", "DOB",
	"Mobile", "EPIC", "PwD", "Department", "Office", "Post", "Payscale",
	"Service_Type", "ACC_No", "Bank", "Branch", "IFSC_Code", "Active", "DA_Reason",
}

// Write encodes rows as an xlsx workbook. s supplies the lookup tables for
// name resolution; an unknown reference is written as its bare id.
func Write(w io.Writer, s model.Snapshot, rows []model.Employee) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("export: new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", style); err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", last, 16); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	names := newResolver(s)
	for i, e := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			int64(e.EmployeeID), string(e.EmployeeName), string(e.EmployeeSurname),
			string(e.Gender), string(e.DOB), string(e.Mobile), string(e.EPIC), string(e.PwD),
			names.department(e.DepartmentID), names.office(e.OfficeID), names.post(e.PostID),
			names.payscale(e.PayID), string(e.ServiceType), accountNo(e.AccountNo),
			names.bank(e.BankID), names.branch(e.BranchID), string(e.IFSCCode),
			activeText(e), string(e.DAReason),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}

// WriteFile writes the workbook to path.
func WriteFile(path string, s model.Snapshot, rows []model.Employee) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := Write(out, s, rows); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func activeText(e model.Employee) string {
	if e.IsActive() {
		return model.Yes
	}
	return model.No
}

// accountNo keeps account numbers as text so leading digits survive.
func accountNo(id model.ID) string {
	if id.IsPending() {
		return ""
	}
	return id.String()
}

type resolver struct {
	departments map[model.ID]string
	offices     map[model.ID]string
	posts       map[model.ID]string
	payscales   map[model.ID]string
	banks       map[model.ID]string
	branches    map[model.ID]string
}

func newResolver(s model.Snapshot) resolver {
	r := resolver{
		departments: map[model.ID]string{},
		offices:     map[model.ID]string{},
		posts:       map[model.ID]string{},
		payscales:   map[model.ID]string{},
		banks:       map[model.ID]string{},
		branches:    map[model.ID]string{},
	}
	for _, d := range s.Departments {
		r.departments[d.DepartmentID] = string(d.DepartmentName)
	}
	for _, o := range s.Offices {
		r.offices[o.OfficeID] = string(o.OfficeName)
	}
	for _, p := range s.Posts {
		r.posts[p.PostID] = string(p.PostName)
	}
	for _, p := range s.Payscales {
		r.payscales[p.PayID] = string(p.PayName)
	}
	for _, b := range s.Banks {
		r.banks[b.BankID] = string(b.BankName)
	}
	for _, b := range s.Branches {
		r.branches[b.BranchID] = string(b.BranchName)
	}
	return r
}

func lookup(m map[model.ID]string, id model.ID) string {
	if id.IsPending() {
		return ""
	}
	if name, ok := m[id]; ok && name != "" {
		return name
	}
	return id.String()
}

func (r resolver) department(id model.ID) string { return lookup(r.departments, id) }
func (r resolver) office(id model.ID) string     { return lookup(r.offices, id) }
func (r resolver) post(id model.ID) string       { return lookup(r.posts, id) }
func (r resolver) payscale(id model.ID) string   { return lookup(r.payscales, id) }
func (r resolver) bank(id model.ID) string       { return lookup(r.banks, id) }
func (r resolver) branch(id model.ID) string     { return lookup(r.branches, id) }
