package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hrops/be-hr-attendance/internal/anomaly"
	"github.com/hrops/be-hr-attendance/internal/database"
)

// ImportStore is the slice of the storage layer an import runs against.
// Every call inside one import shares the same transaction.
type ImportStore interface {
	CreateBatch(ctx context.Context, uploadedBy, filename string) (*ImportBatch, error)
	ResolveDirection(ctx context.Context, name string) (*Direction, error)
	ResolveDepartment(ctx context.Context, name, directionID string) (*Department, error)
	UpsertEmployee(ctx context.Context, up EmployeeUpsert) (*Employee, error)
	SetDepartmentManager(ctx context.Context, departmentID, email string) error
	UpsertRecord(ctx context.Context, rec *AttendanceRecord) error
	ReplaceAnomalies(ctx context.Context, recordID string, findings []anomaly.Finding, flags SpecialDayFlags) error
	EnsureTeleworkDay(ctx context.Context, employeeID string, date time.Time) error
	LoadHolidaySet(ctx context.Context) (*HolidaySet, error)
}

// NotificationStore is the slice of the storage layer the notification
// gate reads and appends to.
type NotificationStore interface {
	GetRecord(ctx context.Context, id string) (*AttendanceRecord, error)
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ManagerEmailForDepartment(ctx context.Context, departmentID string) (*string, error)
	ListAnomaliesForRecord(ctx context.Context, recordID string) ([]*Anomaly, error)
	HasSent(ctx context.Context, recordID string) (bool, error)
	AppendHistory(ctx context.Context, entry *EmailHistoryEntry) error
	ListHistory(ctx context.Context, limit, offset int) ([]*EmailHistoryEntry, int64, error)
}

// UnitOfWork runs a function against an ImportStore inside a single
// transaction. The transaction commits when fn returns nil and rolls
// back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ImportStore) error) error
}

// Store bundles the repositories over one Querier, so the same set of
// operations works against the pool and against a transaction.
type Store struct {
	reference    *ReferenceRepository
	attendance   *AttendanceRepository
	anomalies    *AnomalyRepository
	notification *NotificationRepository
	holidays     *HolidayRepository
}

// NewStore creates a Store over the given Querier.
func NewStore(q database.Querier) *Store {
	return &Store{
		reference:    NewReferenceRepository(q),
		attendance:   NewAttendanceRepository(q),
		anomalies:    NewAnomalyRepository(q),
		notification: NewNotificationRepository(q),
		holidays:     NewHolidayRepository(q),
	}
}

func (s *Store) CreateBatch(ctx context.Context, uploadedBy, filename string) (*ImportBatch, error) {
	return s.attendance.CreateBatch(ctx, uploadedBy, filename)
}

func (s *Store) ResolveDirection(ctx context.Context, name string) (*Direction, error) {
	return s.reference.ResolveDirection(ctx, name)
}

func (s *Store) ResolveDepartment(ctx context.Context, name, directionID string) (*Department, error) {
	return s.reference.ResolveDepartment(ctx, name, directionID)
}

func (s *Store) UpsertEmployee(ctx context.Context, up EmployeeUpsert) (*Employee, error) {
	return s.reference.UpsertEmployee(ctx, up)
}

func (s *Store) SetDepartmentManager(ctx context.Context, departmentID, email string) error {
	return s.reference.SetDepartmentManager(ctx, departmentID, email)
}

func (s *Store) UpsertRecord(ctx context.Context, rec *AttendanceRecord) error {
	return s.attendance.UpsertRecord(ctx, rec)
}

func (s *Store) ReplaceAnomalies(ctx context.Context, recordID string, findings []anomaly.Finding, flags SpecialDayFlags) error {
	return s.anomalies.ReplaceForRecord(ctx, recordID, findings, flags)
}

func (s *Store) EnsureTeleworkDay(ctx context.Context, employeeID string, date time.Time) error {
	return s.attendance.EnsureTeleworkDay(ctx, employeeID, date)
}

func (s *Store) LoadHolidaySet(ctx context.Context) (*HolidaySet, error) {
	return s.holidays.LoadSet(ctx)
}

func (s *Store) GetRecord(ctx context.Context, id string) (*AttendanceRecord, error) {
	return s.attendance.GetRecord(ctx, id)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	return s.reference.GetEmployee(ctx, id)
}

func (s *Store) ManagerEmailForDepartment(ctx context.Context, departmentID string) (*string, error) {
	return s.reference.ManagerEmailForDepartment(ctx, departmentID)
}

func (s *Store) ListAnomaliesForRecord(ctx context.Context, recordID string) ([]*Anomaly, error) {
	return s.anomalies.ListForRecord(ctx, recordID)
}

func (s *Store) HasSent(ctx context.Context, recordID string) (bool, error) {
	return s.notification.HasSent(ctx, recordID)
}

func (s *Store) AppendHistory(ctx context.Context, entry *EmailHistoryEntry) error {
	return s.notification.Append(ctx, entry)
}

func (s *Store) ListHistory(ctx context.Context, limit, offset int) ([]*EmailHistoryEntry, int64, error) {
	return s.notification.List(ctx, limit, offset)
}

type pgUnitOfWork struct {
	db *database.DB
}

// NewUnitOfWork creates a UnitOfWork backed by database transactions.
func NewUnitOfWork(db *database.DB) UnitOfWork {
	return &pgUnitOfWork{db: db}
}

func (u *pgUnitOfWork) Do(ctx context.Context, fn func(ImportStore) error) error {
	return u.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}
