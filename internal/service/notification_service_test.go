package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrops/be-hr-attendance/internal/anomaly"
	apperrors "github.com/hrops/be-hr-attendance/internal/errors"
	"github.com/hrops/be-hr-attendance/internal/repository"
)

type fakeNotificationStore struct {
	record    *repository.AttendanceRecord
	employee  *repository.Employee
	anomalies []*repository.Anomaly
	manager   *string
	sent      map[string]bool
	history   []*repository.EmailHistoryEntry
}

func (f *fakeNotificationStore) GetRecord(_ context.Context, id string) (*repository.AttendanceRecord, error) {
	if f.record == nil || f.record.ID != id {
		return nil, apperrors.NotFound("attendance record", id)
	}
	return f.record, nil
}

func (f *fakeNotificationStore) GetEmployee(_ context.Context, id string) (*repository.Employee, error) {
	if f.employee == nil || f.employee.ID != id {
		return nil, apperrors.NotFound("employee", id)
	}
	return f.employee, nil
}

func (f *fakeNotificationStore) ManagerEmailForDepartment(_ context.Context, departmentID string) (*string, error) {
	if f.manager == nil {
		return nil, apperrors.NotFound("department", departmentID)
	}
	return f.manager, nil
}

func (f *fakeNotificationStore) ListAnomaliesForRecord(_ context.Context, recordID string) ([]*repository.Anomaly, error) {
	return f.anomalies, nil
}

func (f *fakeNotificationStore) HasSent(_ context.Context, recordID string) (bool, error) {
	return f.sent[recordID], nil
}

func (f *fakeNotificationStore) AppendHistory(_ context.Context, entry *repository.EmailHistoryEntry) error {
	f.history = append(f.history, entry)
	if entry.Status == repository.StatusSent && entry.RecordID != nil {
		if f.sent == nil {
			f.sent = make(map[string]bool)
		}
		f.sent[*entry.RecordID] = true
	}
	return nil
}

func (f *fakeNotificationStore) ListHistory(_ context.Context, limit, offset int) ([]*repository.EmailHistoryEntry, int64, error) {
	return f.history, int64(len(f.history)), nil
}

type fakeMailer struct {
	sent []fakeMail
	err  error
}

type fakeMail struct {
	to      string
	cc      *string
	subject string
	body    string
}

func (m *fakeMailer) Send(_ context.Context, to string, cc *string, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, fakeMail{to: to, cc: cc, subject: subject, body: htmlBody})
	return nil
}

func newNotificationFixture() *fakeNotificationStore {
	email := "marie.dupont@orange.com"
	depID := "dep-1"
	return &fakeNotificationStore{
		record: &repository.AttendanceRecord{
			ID:         "rec-1",
			EmployeeID: "emp-1",
			Date:       time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
		},
		employee: &repository.Employee{
			ID:           "emp-1",
			Matricule:    "E001",
			FirstName:    "Marie",
			LastName:     "DUPONT",
			Email:        &email,
			DepartmentID: &depID,
		},
		anomalies: []*repository.Anomaly{
			{ID: "an-1", RecordID: "rec-1", Type: anomaly.TypeLateArrival, Detail: "Entrée tardive de 0:20:00."},
		},
		sent: make(map[string]bool),
	}
}

func TestNotifySendsOnce(t *testing.T) {
	store := newNotificationFixture()
	manager := "chef.cloud@orange.com"
	store.manager = &manager
	mailer := &fakeMailer{}
	svc := NewNotificationService(store, mailer, testLogger())

	sent, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	assert.Equal(t, "marie.dupont@orange.com", mail.to)
	require.NotNil(t, mail.cc)
	assert.Equal(t, manager, *mail.cc)
	assert.Equal(t, "Anomalies de pointage - 25/03/2024", mail.subject)
	assert.Contains(t, mail.body, "Entrée tardive de 0:20:00.")
	assert.Contains(t, mail.body, "Marie")

	require.Len(t, store.history, 1)
	assert.Equal(t, repository.StatusSent, store.history[0].Status)

	// Second call hits the dedup gate.
	sent, err = svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, mailer.sent, 1)
	assert.Len(t, store.history, 1)
}

func TestNotifySkipsWithoutEmail(t *testing.T) {
	store := newNotificationFixture()
	store.employee.Email = nil
	mailer := &fakeMailer{}
	svc := NewNotificationService(store, mailer, testLogger())

	sent, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, store.history, "a skipped notification leaves no history row")
}

func TestNotifySkipsWithoutAnomalies(t *testing.T) {
	store := newNotificationFixture()
	store.anomalies = nil
	mailer := &fakeMailer{}
	svc := NewNotificationService(store, mailer, testLogger())

	sent, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, mailer.sent)
}

func TestNotifyToleratesMissingManager(t *testing.T) {
	store := newNotificationFixture()
	store.manager = nil
	mailer := &fakeMailer{}
	svc := NewNotificationService(store, mailer, testLogger())

	sent, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, mailer.sent, 1)
	assert.Nil(t, mailer.sent[0].cc)
}

func TestNotifyRecordsDeliveryFailure(t *testing.T) {
	store := newNotificationFixture()
	mailer := &fakeMailer{err: fmt.Errorf("connection refused")}
	svc := NewNotificationService(store, mailer, testLogger())

	sent, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err, "delivery errors never propagate")
	assert.False(t, sent)

	require.Len(t, store.history, 1)
	assert.Equal(t, repository.StatusFailed, store.history[0].Status)
	assert.Contains(t, store.history[0].Body, "connection refused")
}

func TestNotifyFailedAttemptDoesNotBlockRetry(t *testing.T) {
	store := newNotificationFixture()
	mailer := &fakeMailer{err: fmt.Errorf("connection refused")}
	svc := NewNotificationService(store, mailer, testLogger())

	_, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)

	mailer.err = nil
	sent, err := svc.Notify(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, sent, "a FAILED row must not satisfy the dedup gate")

	require.Len(t, store.history, 2)
	assert.Equal(t, repository.StatusSent, store.history[1].Status)
}

func TestNotifyUnknownRecord(t *testing.T) {
	store := newNotificationFixture()
	svc := NewNotificationService(store, &fakeMailer{}, testLogger())

	_, err := svc.Notify(context.Background(), "rec-missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
