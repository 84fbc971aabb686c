package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hrops/be-hr-attendance/internal/anomaly"
	"github.com/hrops/be-hr-attendance/internal/database"
	"github.com/hrops/be-hr-attendance/internal/errors"
)

// Anomaly is one detected anomaly attached to an attendance record. Rows are
// cascade-deleted with their record and fully replaced on re-import.
type Anomaly struct {
	ID         string
	RecordID   string
	Type       anomaly.Type
	Detail     string
	IsHoliday  bool
	IsLeave    bool
	IsTelework bool
	DetectedAt time.Time
}

// SpecialDayFlags record which special-day conditions held when an anomaly
// was detected.
type SpecialDayFlags struct {
	Holiday  bool
	Leave    bool
	Telework bool
}

// DirectionCount is one aggregation bucket of the anomaly summary.
type DirectionCount struct {
	Name  string
	Total int64
}

// Summary is the aggregate view consumed by the reporting dashboards.
type Summary struct {
	TotalRecords   int64
	TotalAnomalies int64
	ByDirection    []DirectionCount
	ByDepartment   []DirectionCount
}

// AnomalyRepository stores detected anomalies.
type AnomalyRepository struct {
	q database.Querier
}

// NewAnomalyRepository creates a new AnomalyRepository.
func NewAnomalyRepository(q database.Querier) *AnomalyRepository {
	return &AnomalyRepository{q: q}
}

// ReplaceForRecord discards every anomaly of the record and inserts the
// given findings. Anomalies are always recomputed whole, never merged.
func (r *AnomalyRepository) ReplaceForRecord(ctx context.Context, recordID string, findings []anomaly.Finding, flags SpecialDayFlags) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM anomalies WHERE record_id = $1`, recordID); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete prior anomalies")
	}

	insert := `
		INSERT INTO anomalies (id, record_id, type, detail, is_holiday, is_leave, is_telework)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, f := range findings {
		_, err := r.q.Exec(ctx, insert,
			uuid.NewString(), recordID, string(f.Type), f.Detail,
			flags.Holiday, flags.Leave, flags.Telework)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert anomaly")
		}
	}

	return nil
}

// ListForRecord returns the anomalies of one record in detection order.
func (r *AnomalyRepository) ListForRecord(ctx context.Context, recordID string) ([]*Anomaly, error) {
	query := `
		SELECT id, record_id, type, detail, is_holiday, is_leave, is_telework, detected_at
		FROM anomalies
		WHERE record_id = $1
		ORDER BY detected_at ASC, type ASC
	`

	rows, err := r.q.Query(ctx, query, recordID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list anomalies")
	}
	defer rows.Close()

	anomalies := make([]*Anomaly, 0)
	for rows.Next() {
		a := &Anomaly{}
		err := rows.Scan(&a.ID, &a.RecordID, &a.Type, &a.Detail,
			&a.IsHoliday, &a.IsLeave, &a.IsTelework, &a.DetectedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan anomaly")
		}
		anomalies = append(anomalies, a)
	}

	return anomalies, nil
}

// GetSummary aggregates anomaly counts per direction and per department,
// top 5 of each bucket, for the reporting readers.
func (r *AnomalyRepository) GetSummary(ctx context.Context) (*Summary, error) {
	s := &Summary{}

	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_records`).Scan(&s.TotalRecords)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to count attendance records")
	}

	err = r.q.QueryRow(ctx, `SELECT COUNT(*) FROM anomalies`).Scan(&s.TotalAnomalies)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to count anomalies")
	}

	byDirection := `
		SELECT COALESCE(dir.name, 'N/A'), COUNT(*)
		FROM anomalies a
		JOIN attendance_records ar ON ar.id = a.record_id
		LEFT JOIN directions dir ON dir.id = ar.direction_id
		GROUP BY dir.name
		ORDER BY COUNT(*) DESC
		LIMIT 5
	`
	s.ByDirection, err = r.scanCounts(ctx, byDirection)
	if err != nil {
		return nil, err
	}

	byDepartment := `
		SELECT COALESCE(dep.name, 'N/A'), COUNT(*)
		FROM anomalies a
		JOIN attendance_records ar ON ar.id = a.record_id
		LEFT JOIN departments dep ON dep.id = ar.department_id
		GROUP BY dep.name
		ORDER BY COUNT(*) DESC
		LIMIT 5
	`
	s.ByDepartment, err = r.scanCounts(ctx, byDepartment)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (r *AnomalyRepository) scanCounts(ctx context.Context, query string) ([]DirectionCount, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to aggregate anomalies")
	}
	defer rows.Close()

	counts := make([]DirectionCount, 0)
	for rows.Next() {
		var c DirectionCount
		if err := rows.Scan(&c.Name, &c.Total); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan anomaly count")
		}
		counts = append(counts, c)
	}

	return counts, nil
}
