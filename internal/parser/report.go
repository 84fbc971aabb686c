package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Column names of the badge report export. The header may carry extra
// columns; these sixteen must all be present.
const (
	ColMatricule        = "MATRICULE"
	ColLastName         = "NOM"
	ColFirstName        = "PRENOM"
	ColDate             = "Date"
	ColEntry            = "Entrée"
	ColExit             = "Sortie"
	ColPresenceActual   = "Temps de présence réel"
	ColPresenceExpected = "Temps de présence théorique"
	ColLateArrival      = "Entrée tardive"
	ColEarlyLeave       = "Sortie anticipée"
	ColAbsenceJustified = "Absence Justifiée (par heure)"
	ColAbsenceUnjust    = "Absence non justifiée"
	ColOddBadge         = "Anomalie(badgeage impair)"
	ColTeleworkPlanned  = "Jour TT Planifié"
	ColDepartment       = "Departement"
	ColDirection        = "Direction"
)

var requiredColumns = []string{
	ColMatricule, ColLastName, ColFirstName, ColDate,
	ColEntry, ColExit, ColPresenceActual, ColPresenceExpected,
	ColLateArrival, ColEarlyLeave, ColAbsenceJustified, ColAbsenceUnjust,
	ColOddBadge, ColTeleworkPlanned, ColDepartment, ColDirection,
}

// ReportRow is one data row of the badge report, still as raw cell strings.
// Line is the 1-based line number in the file (the header is line 1) so
// later failures can name the offending row.
type ReportRow struct {
	Line             int
	Matricule        string
	LastName         string
	FirstName        string
	Date             string
	Entry            string
	Exit             string
	PresenceActual   string
	PresenceExpected string
	LateArrival      string
	EarlyLeave       string
	AbsenceJustified string
	AbsenceUnjust    string
	OddBadge         string
	TeleworkPlanned  string
	Department       string
	Direction        string
}

// ReadReport parses the comma-separated badge report. A UTF-8 BOM before the
// header is tolerated; unknown columns are ignored; short records read as
// empty cells.
func ReadReport(r io.Reader) ([]ReportRow, error) {
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
	for _, name := range requiredColumns {
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

	var rows []ReportRow
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

		rows = append(rows, ReportRow{
			Line:             line,
			Matricule:        cell(rec, ColMatricule),
			LastName:         cell(rec, ColLastName),
			FirstName:        cell(rec, ColFirstName),
			Date:             cell(rec, ColDate),
			Entry:            cell(rec, ColEntry),
			Exit:             cell(rec, ColExit),
			PresenceActual:   cell(rec, ColPresenceActual),
			PresenceExpected: cell(rec, ColPresenceExpected),
			LateArrival:      cell(rec, ColLateArrival),
			EarlyLeave:       cell(rec, ColEarlyLeave),
			AbsenceJustified: cell(rec, ColAbsenceJustified),
			AbsenceUnjust:    cell(rec, ColAbsenceUnjust),
			OddBadge:         cell(rec, ColOddBadge),
			TeleworkPlanned:  cell(rec, ColTeleworkPlanned),
			Department:       cell(rec, ColDepartment),
			Direction:        cell(rec, ColDirection),
		})
	}

	return rows, nil
}
