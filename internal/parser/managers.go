package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Column names of the manager assignment file.
const (
	ColManagerDirection  = "direction_nom"
	ColManagerDepartment = "departement_nom"
	ColManagerEmail      = "manager_email"
)

var managerColumns = []string{
	ColManagerDirection, ColManagerDepartment, ColManagerEmail,
}

// ManagerAssignment is one row of the manager file: the department named
// within its direction, and the address to set as its manager.
type ManagerAssignment struct {
	Line         int
	Direction    string
	Department   string
	ManagerEmail string
}

// ReadManagerAssignments parses the comma-separated manager file. Same
// tolerance as the badge report: BOM stripped, unknown columns ignored,
// short records read as empty cells.
func ReadManagerAssignments(r io.Reader) ([]ManagerAssignment, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range managerColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column: %s", name)
		}
	}

	cell := func(rec []string, name string) string {
		i := col[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []ManagerAssignment
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		rows = append(rows, ManagerAssignment{
			Line:         line,
			Direction:    cell(rec, ColManagerDirection),
			Department:   cell(rec, ColManagerDepartment),
			ManagerEmail: cell(rec, ColManagerEmail),
		})
	}

	return rows, nil
}
