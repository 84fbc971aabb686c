package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hrops/be-hr-attendance/internal/anomaly"
	"github.com/hrops/be-hr-attendance/internal/errors"
	"github.com/hrops/be-hr-attendance/internal/logger"
	"github.com/hrops/be-hr-attendance/internal/parser"
	"github.com/hrops/be-hr-attendance/internal/repository"
)

// Notifier sends the anomaly notification for one attendance record.
// Implemented by NotificationService.
type Notifier interface {
	Notify(ctx context.Context, recordID string) (bool, error)
}

// ImportService handles badge report import business logic.
type ImportService struct {
	uow             repository.UnitOfWork
	notifier        Notifier
	placeholderHost string
	log             *logger.Logger
}

// NewImportService creates a new import service. placeholderHost is the
// domain used when synthesizing placeholder addresses for employees whose
// report rows carry none.
func NewImportService(
	uow repository.UnitOfWork,
	notifier Notifier,
	placeholderHost string,
	log *logger.Logger,
) *ImportService {
	return &ImportService{
		uow:             uow,
		notifier:        notifier,
		placeholderHost: placeholderHost,
		log:             log,
	}
}

// ImportSummary reports the outcome of one committed import.
type ImportSummary struct {
	Batch            *repository.ImportBatch
	RowsImported     int
	RowsSkipped      int
	AnomalyCount     int
	FlaggedRecordIDs []string
}

// Import ingests one badge report. The whole file is applied in a single
// transaction: any row failure rolls everything back and the error names
// the file line and matricule. When autoSend is set, notifications for the
// flagged records are dispatched after commit; their failures are logged
// and never fail the import.
func (s *ImportService) Import(ctx context.Context, r io.Reader, uploadedBy, filename string, autoSend bool) (*ImportSummary, error) {
	rows, err := parser.ReadReport(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read badge report")
	}

	summary := &ImportSummary{}

	err = s.uow.Do(ctx, func(store repository.ImportStore) error {
		batch, err := store.CreateBatch(ctx, uploadedBy, filename)
		if err != nil {
			return err
		}
		summary.Batch = batch

		holidays, err := store.LoadHolidaySet(ctx)
		if err != nil {
			return err
		}

		for _, row := range rows {
			if row.Matricule == "" {
				summary.RowsSkipped++
				continue
			}
			if err := s.importRow(ctx, store, holidays, batch.ID, row, summary); err != nil {
				return fmt.Errorf("line %d (matricule %s): %w", row.Line, row.Matricule, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("batch_id", summary.Batch.ID).
		Str("filename", filename).
		Int("rows_imported", summary.RowsImported).
		Int("rows_skipped", summary.RowsSkipped).
		Int("anomalies", summary.AnomalyCount).
		Msg("Badge report imported")

	if autoSend {
		s.dispatchNotifications(ctx, summary.FlaggedRecordIDs)
	}

	return summary, nil
}

// ManagerImportSummary reports the outcome of one manager file import.
type ManagerImportSummary struct {
	Assigned    int
	RowsSkipped int
}

// ImportManagers ingests the manager assignment file, creating missing
// directions and departments on the way and setting each department's
// manager address. Applied in a single transaction like the badge report.
func (s *ImportService) ImportManagers(ctx context.Context, r io.Reader) (*ManagerImportSummary, error) {
	rows, err := parser.ReadManagerAssignments(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read manager file")
	}

	summary := &ManagerImportSummary{}

	err = s.uow.Do(ctx, func(store repository.ImportStore) error {
		for _, row := range rows {
			if row.Department == "" || row.ManagerEmail == "" {
				summary.RowsSkipped++
				continue
			}

			direction, err := store.ResolveDirection(ctx, orNA(row.Direction))
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", row.Line, row.Department, err)
			}
			department, err := store.ResolveDepartment(ctx, row.Department, direction.ID)
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", row.Line, row.Department, err)
			}
			if err := store.SetDepartmentManager(ctx, department.ID, row.ManagerEmail); err != nil {
				return fmt.Errorf("line %d (%s): %w", row.Line, row.Department, err)
			}
			summary.Assigned++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("assigned", summary.Assigned).
		Int("rows_skipped", summary.RowsSkipped).
		Msg("Manager assignments imported")

	return summary, nil
}

func (s *ImportService) importRow(
	ctx context.Context,
	store repository.ImportStore,
	holidays *repository.HolidaySet,
	batchID string,
	row parser.ReportRow,
	summary *ImportSummary,
) error {
	date, err := parser.ParseDayFirstDate(row.Date)
	if err != nil {
		return errors.InvalidInput("date", err.Error())
	}

	var departmentID, directionID *string
	direction, err := store.ResolveDirection(ctx, orNA(row.Direction))
	if err != nil {
		return err
	}
	directionID = &direction.ID
	department, err := store.ResolveDepartment(ctx, orNA(row.Department), direction.ID)
	if err != nil {
		return err
	}
	departmentID = &department.ID

	employee, err := store.UpsertEmployee(ctx, repository.EmployeeUpsert{
		Matricule:     row.Matricule,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		DepartmentID:  departmentID,
		DirectionID:   directionID,
		FallbackEmail: s.placeholderEmail(row.FirstName, row.LastName),
	})
	if err != nil {
		return err
	}

	rec := &repository.AttendanceRecord{
		EmployeeID:       employee.ID,
		Date:             date,
		EntryTime:        parser.ParseClock(row.Entry),
		ExitTime:         parser.ParseClock(row.Exit),
		PresenceActual:   parser.ParseDuration(row.PresenceActual),
		PresenceExpected: parser.ParseDuration(row.PresenceExpected),
		LateArrival:      parser.ParseDuration(row.LateArrival),
		EarlyLeave:       parser.ParseDuration(row.EarlyLeave),
		AbsenceJustified: parser.ParseDecimalOrZero(row.AbsenceJustified),
		AbsenceUnjust:    parser.ParseDecimalOrZero(row.AbsenceUnjust),
		OddBadge:         parser.ParseOuiNon(row.OddBadge),
		TeleworkPlanned:  parser.ParseOuiNon(row.TeleworkPlanned),
		DepartmentID:     departmentID,
		DirectionID:      directionID,
		BatchID:          &batchID,
	}
	if err := store.UpsertRecord(ctx, rec); err != nil {
		return err
	}

	flags := repository.SpecialDayFlags{
		Holiday:  holidays.Contains(date),
		Leave:    rec.AbsenceJustified.IsPositive(),
		Telework: rec.TeleworkPlanned,
	}
	findings := anomaly.Detect(anomaly.Input{
		LateArrival:      rec.LateArrival,
		EarlyLeave:       rec.EarlyLeave,
		PresenceActual:   rec.PresenceActual,
		PresenceExpected: rec.PresenceExpected,
		AbsenceUnjust:    rec.AbsenceUnjust,
		OddBadge:         rec.OddBadge,
		IsHoliday:        flags.Holiday,
		IsLeave:          flags.Leave,
		IsTelework:       flags.Telework,
	})
	if err := store.ReplaceAnomalies(ctx, rec.ID, findings, flags); err != nil {
		return err
	}

	if rec.TeleworkPlanned {
		if err := store.EnsureTeleworkDay(ctx, employee.ID, date); err != nil {
			return err
		}
	}

	summary.RowsImported++
	summary.AnomalyCount += len(findings)
	if len(findings) > 0 {
		summary.FlaggedRecordIDs = append(summary.FlaggedRecordIDs, rec.ID)
	}

	return nil
}

func (s *ImportService) dispatchNotifications(ctx context.Context, recordIDs []string) {
	for _, id := range recordIDs {
		if _, err := s.notifier.Notify(ctx, id); err != nil {
			s.log.Warn().Err(err).
				Str("record_id", id).
				Msg("Auto-send notification failed; continuing")
		}
	}
}

// placeholderEmail builds the address used when an employee has none on
// file: first and last names lowercased with everything but letters
// stripped, marked as synthetic.
func (s *ImportService) placeholderEmail(firstName, lastName string) string {
	return fmt.Sprintf("%s.%s.factice@%s", emailToken(firstName), emailToken(lastName), s.placeholderHost)
}

func emailToken(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func orNA(name string) string {
	if strings.TrimSpace(name) == "" {
		return "N/A"
	}
	return name
}
