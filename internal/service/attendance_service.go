package service

import (
	"context"
	"time"

	"github.com/hrops/be-hr-attendance/internal/logger"
	"github.com/hrops/be-hr-attendance/internal/repository"
)

// AttendanceService handles the attendance read surface and the holiday
// table administration.
type AttendanceService struct {
	attendanceRepo *repository.AttendanceRepository
	anomalyRepo    *repository.AnomalyRepository
	holidayRepo    *repository.HolidayRepository
	log            *logger.Logger
}

// NewAttendanceService creates a new attendance service.
func NewAttendanceService(
	attendanceRepo *repository.AttendanceRepository,
	anomalyRepo *repository.AnomalyRepository,
	holidayRepo *repository.HolidayRepository,
	log *logger.Logger,
) *AttendanceService {
	return &AttendanceService{
		attendanceRepo: attendanceRepo,
		anomalyRepo:    anomalyRepo,
		holidayRepo:    holidayRepo,
		log:            log,
	}
}

// RecordDetail is one attendance record with its anomalies.
type RecordDetail struct {
	Record    *repository.AttendanceRecord
	Anomalies []*repository.Anomaly
}

// List returns a filtered page of attendance records.
func (s *AttendanceService) List(ctx context.Context, filter repository.RecordFilter, limit, offset int) ([]*repository.RecordListItem, int64, error) {
	return s.attendanceRepo.List(ctx, filter, limit, offset)
}

// Get returns one attendance record together with its detected anomalies.
func (s *AttendanceService) Get(ctx context.Context, id string) (*RecordDetail, error) {
	rec, err := s.attendanceRepo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	anomalies, err := s.anomalyRepo.ListForRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RecordDetail{Record: rec, Anomalies: anomalies}, nil
}

// AnomalySummary returns the aggregate anomaly counts.
func (s *AttendanceService) AnomalySummary(ctx context.Context) (*repository.Summary, error) {
	return s.anomalyRepo.GetSummary(ctx)
}

// Holidays returns the holiday table ordered by date.
func (s *AttendanceService) Holidays(ctx context.Context) ([]*repository.Holiday, error) {
	return s.holidayRepo.List(ctx)
}

// AddHoliday registers a holiday date, overwriting the label if the date
// already exists.
func (s *AttendanceService) AddHoliday(ctx context.Context, date time.Time, label string) (*repository.Holiday, error) {
	h, err := s.holidayRepo.Add(ctx, date, label)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Time("date", date).
		Str("label", label).
		Msg("Holiday registered")

	return h, nil
}
