package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hrops/be-hr-attendance/internal/database"
	"github.com/hrops/be-hr-attendance/internal/errors"
)

// Holiday is one public holiday date. The table is the source of truth,
// maintained by HR (movable religious holidays must be entered by hand).
type Holiday struct {
	ID    string
	Date  time.Time
	Label string
}

// fixedHolidays are the fixed national holidays (MM-DD), used as fallback
// when a date is missing from the table.
var fixedHolidays = map[string]string{
	"01-01": "Nouvel an",
	"01-11": "Manifeste de l'indépendance",
	"05-01": "Fête du Travail",
	"07-30": "Fête du Trône",
	"08-14": "Allégeance Oued Eddahab",
	"08-20": "Révolution du Roi et du Peuple",
	"08-21": "Fête de la Jeunesse",
	"11-06": "Marche Verte",
	"11-18": "Fête de l'Indépendance",
}

// HolidaySet is the holiday lookup preloaded once per import so the rule
// engine stays pure and the row loop never queries per row.
type HolidaySet struct {
	dates map[string]struct{}
}

// Contains reports whether the date is a holiday: table dates first, then
// the fixed national fallback.
func (s *HolidaySet) Contains(d time.Time) bool {
	if s != nil {
		if _, ok := s.dates[d.Format("2006-01-02")]; ok {
			return true
		}
	}
	_, ok := fixedHolidays[d.Format("01-02")]
	return ok
}

// HolidayRepository stores holiday dates.
type HolidayRepository struct {
	q database.Querier
}

// NewHolidayRepository creates a new HolidayRepository.
func NewHolidayRepository(q database.Querier) *HolidayRepository {
	return &HolidayRepository{q: q}
}

// LoadSet reads every holiday date into a HolidaySet.
func (r *HolidayRepository) LoadSet(ctx context.Context) (*HolidaySet, error) {
	rows, err := r.q.Query(ctx, `SELECT date FROM holidays`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load holidays")
	}
	defer rows.Close()

	set := &HolidaySet{dates: make(map[string]struct{})}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan holiday")
		}
		set.dates[d.Format("2006-01-02")] = struct{}{}
	}

	return set, nil
}

// Add inserts a holiday date, updating the label when the date exists.
func (r *HolidayRepository) Add(ctx context.Context, date time.Time, label string) (*Holiday, error) {
	h := &Holiday{Date: date, Label: label}

	query := `
		INSERT INTO holidays (id, date, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE SET label = EXCLUDED.label
		RETURNING id
	`
	if err := r.q.QueryRow(ctx, query, uuid.NewString(), date, label).Scan(&h.ID); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to add holiday")
	}

	return h, nil
}

// List returns the holiday table ordered by date.
func (r *HolidayRepository) List(ctx context.Context) ([]*Holiday, error) {
	rows, err := r.q.Query(ctx, `SELECT id, date, label FROM holidays ORDER BY date ASC`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list holidays")
	}
	defer rows.Close()

	holidays := make([]*Holiday, 0)
	for rows.Next() {
		h := &Holiday{}
		if err := rows.Scan(&h.ID, &h.Date, &h.Label); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan holiday")
		}
		holidays = append(holidays, h)
	}

	return holidays, nil
}
