package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hrops/be-hr-attendance/internal/database"
	"github.com/hrops/be-hr-attendance/internal/errors"
)

// ImportBatch groups all attendance records created by one import run.
// Immutable after creation.
type ImportBatch struct {
	ID         string
	CreatedAt  time.Time
	UploadedBy string
	Filename   string
}

// AttendanceRecord is one badge report row for one employee and one calendar
// date. Nil durations mean the report carried no value, which is distinct
// from an explicit zero.
type AttendanceRecord struct {
	ID               string
	EmployeeID       string
	Date             time.Time
	EntryTime        *string
	ExitTime         *string
	PresenceActual   *time.Duration
	PresenceExpected *time.Duration
	LateArrival      *time.Duration
	EarlyLeave       *time.Duration
	AbsenceJustified decimal.Decimal
	AbsenceUnjust    decimal.Decimal
	OddBadge         bool
	TeleworkPlanned  bool
	DepartmentID     *string
	DirectionID      *string
	BatchID          *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RecordFilter narrows attendance listings.
type RecordFilter struct {
	Matricule     *string
	Direction     *string
	Department    *string
	From          *time.Time
	To            *time.Time
	WithAnomalies bool
}

// RecordListItem is an attendance record joined with its display labels for
// the review/filter readers.
type RecordListItem struct {
	AttendanceRecord
	Matricule      string
	EmployeeName   string
	DepartmentName *string
	DirectionName  *string
	AnomalyCount   int
}

// AttendanceRepository stores import batches, attendance records and
// telework-day markers.
type AttendanceRepository struct {
	q database.Querier
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(q database.Querier) *AttendanceRepository {
	return &AttendanceRepository{q: q}
}

// CreateBatch creates the import batch for one run.
func (r *AttendanceRepository) CreateBatch(ctx context.Context, uploadedBy, filename string) (*ImportBatch, error) {
	b := &ImportBatch{UploadedBy: uploadedBy, Filename: filename}

	query := `
		INSERT INTO import_batches (id, uploaded_by, filename)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query, uuid.NewString(), uploadedBy, filename).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create import batch")
	}

	return b, nil
}

// UpsertRecord creates or fully overwrites the record keyed by
// (employee, date), filling in the stored id and timestamps. A re-import
// updates in place; the pair uniqueness is never violated.
func (r *AttendanceRepository) UpsertRecord(ctx context.Context, rec *AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records
		    (id, employee_id, date, entry_time, exit_time,
		     presence_actual_secs, presence_expected_secs,
		     late_arrival_secs, early_leave_secs,
		     absence_justified_hours, absence_unjustified_hours,
		     odd_badge, telework_planned,
		     department_id, direction_id, batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (employee_id, date) DO UPDATE
		SET entry_time                = EXCLUDED.entry_time,
		    exit_time                 = EXCLUDED.exit_time,
		    presence_actual_secs      = EXCLUDED.presence_actual_secs,
		    presence_expected_secs    = EXCLUDED.presence_expected_secs,
		    late_arrival_secs         = EXCLUDED.late_arrival_secs,
		    early_leave_secs          = EXCLUDED.early_leave_secs,
		    absence_justified_hours   = EXCLUDED.absence_justified_hours,
		    absence_unjustified_hours = EXCLUDED.absence_unjustified_hours,
		    odd_badge                 = EXCLUDED.odd_badge,
		    telework_planned          = EXCLUDED.telework_planned,
		    department_id             = EXCLUDED.department_id,
		    direction_id              = EXCLUDED.direction_id,
		    batch_id                  = EXCLUDED.batch_id,
		    updated_at                = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		uuid.NewString(),
		rec.EmployeeID,
		rec.Date,
		rec.EntryTime,
		rec.ExitTime,
		secsOrNil(rec.PresenceActual),
		secsOrNil(rec.PresenceExpected),
		secsOrNil(rec.LateArrival),
		secsOrNil(rec.EarlyLeave),
		rec.AbsenceJustified,
		rec.AbsenceUnjust,
		rec.OddBadge,
		rec.TeleworkPlanned,
		rec.DepartmentID,
		rec.DirectionID,
		rec.BatchID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert attendance record")
	}

	return nil
}

// GetRecord retrieves one attendance record by id.
func (r *AttendanceRepository) GetRecord(ctx context.Context, id string) (*AttendanceRecord, error) {
	rec := &AttendanceRecord{}
	var actual, expected, late, early *int64

	query := `
		SELECT id, employee_id, date, entry_time, exit_time,
		       presence_actual_secs, presence_expected_secs,
		       late_arrival_secs, early_leave_secs,
		       absence_justified_hours, absence_unjustified_hours,
		       odd_badge, telework_planned,
		       department_id, direction_id, batch_id,
		       created_at, updated_at
		FROM attendance_records
		WHERE id = $1
	`
	err := r.q.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.EmployeeID, &rec.Date, &rec.EntryTime, &rec.ExitTime,
		&actual, &expected, &late, &early,
		&rec.AbsenceJustified, &rec.AbsenceUnjust,
		&rec.OddBadge, &rec.TeleworkPlanned,
		&rec.DepartmentID, &rec.DirectionID, &rec.BatchID,
		&rec.CreatedAt, &rec.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("attendance record", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get attendance record")
	}

	rec.PresenceActual = durOrNil(actual)
	rec.PresenceExpected = durOrNil(expected)
	rec.LateArrival = durOrNil(late)
	rec.EarlyLeave = durOrNil(early)

	return rec, nil
}

// List retrieves attendance records with filtering and pagination, joined
// with their display labels and anomaly counts.
func (r *AttendanceRepository) List(ctx context.Context, filter RecordFilter, limit, offset int) ([]*RecordListItem, int64, error) {
	base := `
		FROM attendance_records ar
		JOIN employees e ON e.id = ar.employee_id
		LEFT JOIN departments dep ON dep.id = ar.department_id
		LEFT JOIN directions dir ON dir.id = ar.direction_id
		WHERE 1=1
	`

	args := []any{}
	argCount := 1

	if filter.Matricule != nil {
		base += fmt.Sprintf(" AND e.matricule = $%d", argCount)
		args = append(args, *filter.Matricule)
		argCount++
	}
	if filter.Direction != nil {
		base += fmt.Sprintf(" AND LOWER(dir.name) = LOWER($%d)", argCount)
		args = append(args, *filter.Direction)
		argCount++
	}
	if filter.Department != nil {
		base += fmt.Sprintf(" AND LOWER(dep.name) = LOWER($%d)", argCount)
		args = append(args, *filter.Department)
		argCount++
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND ar.date >= $%d", argCount)
		args = append(args, *filter.From)
		argCount++
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND ar.date <= $%d", argCount)
		args = append(args, *filter.To)
		argCount++
	}
	if filter.WithAnomalies {
		base += " AND EXISTS (SELECT 1 FROM anomalies a WHERE a.record_id = ar.id)"
	}

	var total int64
	countQuery := "SELECT COUNT(*) " + base
	if err := r.q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count attendance records")
	}

	query := `
		SELECT ar.id, ar.employee_id, ar.date, ar.entry_time, ar.exit_time,
		       ar.presence_actual_secs, ar.presence_expected_secs,
		       ar.late_arrival_secs, ar.early_leave_secs,
		       ar.absence_justified_hours, ar.absence_unjustified_hours,
		       ar.odd_badge, ar.telework_planned,
		       ar.department_id, ar.direction_id, ar.batch_id,
		       ar.created_at, ar.updated_at,
		       e.matricule, e.first_name || ' ' || e.last_name,
		       dep.name, dir.name,
		       (SELECT COUNT(*) FROM anomalies a WHERE a.record_id = ar.id)
	` + base + fmt.Sprintf(`
		ORDER BY ar.date DESC, e.matricule ASC
		LIMIT $%d OFFSET $%d
	`, argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list attendance records")
	}
	defer rows.Close()

	items := make([]*RecordListItem, 0)
	for rows.Next() {
		item := &RecordListItem{}
		var actual, expected, late, early *int64

		err := rows.Scan(
			&item.ID, &item.EmployeeID, &item.Date, &item.EntryTime, &item.ExitTime,
			&actual, &expected, &late, &early,
			&item.AbsenceJustified, &item.AbsenceUnjust,
			&item.OddBadge, &item.TeleworkPlanned,
			&item.DepartmentID, &item.DirectionID, &item.BatchID,
			&item.CreatedAt, &item.UpdatedAt,
			&item.Matricule, &item.EmployeeName,
			&item.DepartmentName, &item.DirectionName,
			&item.AnomalyCount,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan attendance record")
		}

		item.PresenceActual = durOrNil(actual)
		item.PresenceExpected = durOrNil(expected)
		item.LateArrival = durOrNil(late)
		item.EarlyLeave = durOrNil(early)

		items = append(items, item)
	}

	return items, total, nil
}

// EnsureTeleworkDay creates the telework-day marker for (employee, date) if
// it does not already exist. Never duplicates.
func (r *AttendanceRepository) EnsureTeleworkDay(ctx context.Context, employeeID string, date time.Time) error {
	query := `
		INSERT INTO telework_days (id, employee_id, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id, date) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, uuid.NewString(), employeeID, date); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to ensure telework day")
	}
	return nil
}

func secsOrNil(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	s := int64(*d / time.Second)
	return &s
}

func durOrNil(secs *int64) *time.Duration {
	if secs == nil {
		return nil
	}
	d := time.Duration(*secs) * time.Second
	return &d
}
