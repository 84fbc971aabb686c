package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrops/be-hr-attendance/internal/anomaly"
	apperrors "github.com/hrops/be-hr-attendance/internal/errors"
	"github.com/hrops/be-hr-attendance/internal/logger"
	"github.com/hrops/be-hr-attendance/internal/repository"
)

const testHeader = "MATRICULE,NOM,PRENOM,Date,Entrée,Sortie," +
	"Temps de présence réel,Temps de présence théorique," +
	"Entrée tardive,Sortie anticipée," +
	"Absence Justifiée (par heure),Absence non justifiée," +
	"Anomalie(badgeage impair),Jour TT Planifié,Departement,Direction"

// fakeImportStore is an in-memory ImportStore mirroring the upsert and
// replace semantics of the postgres repositories.
type fakeImportStore struct {
	nextID      int
	batches     []*repository.ImportBatch
	directions  map[string]*repository.Direction
	departments map[string]*repository.Department
	employees   map[string]*repository.Employee
	records     map[string]*repository.AttendanceRecord
	findings    map[string][]anomaly.Finding
	flags       map[string]repository.SpecialDayFlags
	telework    map[string]bool
}

func newFakeImportStore() *fakeImportStore {
	return &fakeImportStore{
		directions:  make(map[string]*repository.Direction),
		departments: make(map[string]*repository.Department),
		employees:   make(map[string]*repository.Employee),
		records:     make(map[string]*repository.AttendanceRecord),
		findings:    make(map[string][]anomaly.Finding),
		flags:       make(map[string]repository.SpecialDayFlags),
		telework:    make(map[string]bool),
	}
}

func (f *fakeImportStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeImportStore) CreateBatch(_ context.Context, uploadedBy, filename string) (*repository.ImportBatch, error) {
	b := &repository.ImportBatch{ID: f.id("batch"), UploadedBy: uploadedBy, Filename: filename, CreatedAt: time.Now()}
	f.batches = append(f.batches, b)
	return b, nil
}

func (f *fakeImportStore) ResolveDirection(_ context.Context, name string) (*repository.Direction, error) {
	key := strings.ToLower(name)
	if d, ok := f.directions[key]; ok {
		return d, nil
	}
	d := &repository.Direction{ID: f.id("dir"), Name: name}
	f.directions[key] = d
	return d, nil
}

func (f *fakeImportStore) ResolveDepartment(_ context.Context, name, directionID string) (*repository.Department, error) {
	key := strings.ToLower(name) + "|" + directionID
	if d, ok := f.departments[key]; ok {
		return d, nil
	}
	d := &repository.Department{ID: f.id("dep"), Name: name, DirectionID: directionID}
	f.departments[key] = d
	return d, nil
}

func (f *fakeImportStore) UpsertEmployee(_ context.Context, up repository.EmployeeUpsert) (*repository.Employee, error) {
	e, ok := f.employees[up.Matricule]
	if !ok {
		e = &repository.Employee{ID: f.id("emp"), Matricule: up.Matricule}
		f.employees[up.Matricule] = e
	}
	e.FirstName = up.FirstName
	e.LastName = up.LastName
	e.DepartmentID = up.DepartmentID
	e.DirectionID = up.DirectionID
	if (e.Email == nil || *e.Email == "") && up.FallbackEmail != "" {
		email := up.FallbackEmail
		e.Email = &email
	}
	return e, nil
}

func (f *fakeImportStore) SetDepartmentManager(_ context.Context, departmentID, email string) error {
	for _, d := range f.departments {
		if d.ID == departmentID {
			e := email
			d.ManagerEmail = &e
			return nil
		}
	}
	return apperrors.NotFound("department", departmentID)
}

func (f *fakeImportStore) UpsertRecord(_ context.Context, rec *repository.AttendanceRecord) error {
	key := rec.EmployeeID + "|" + rec.Date.Format("2006-01-02")
	if existing, ok := f.records[key]; ok {
		rec.ID = existing.ID
	} else {
		rec.ID = f.id("rec")
	}
	stored := *rec
	f.records[key] = &stored
	return nil
}

func (f *fakeImportStore) ReplaceAnomalies(_ context.Context, recordID string, findings []anomaly.Finding, flags repository.SpecialDayFlags) error {
	f.findings[recordID] = findings
	f.flags[recordID] = flags
	return nil
}

func (f *fakeImportStore) EnsureTeleworkDay(_ context.Context, employeeID string, date time.Time) error {
	f.telework[employeeID+"|"+date.Format("2006-01-02")] = true
	return nil
}

func (f *fakeImportStore) LoadHolidaySet(_ context.Context) (*repository.HolidaySet, error) {
	// Empty table: only the fixed national dates apply.
	return &repository.HolidaySet{}, nil
}

type fakeUnitOfWork struct {
	store *fakeImportStore
}

func (u *fakeUnitOfWork) Do(_ context.Context, fn func(repository.ImportStore) error) error {
	return fn(u.store)
}

type fakeNotifier struct {
	notified []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, recordID string) (bool, error) {
	n.notified = append(n.notified, recordID)
	return n.err == nil, n.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "disabled", Environment: "production"})
}

func newTestImportService(store *fakeImportStore, notifier *fakeNotifier) *ImportService {
	return NewImportService(&fakeUnitOfWork{store: store}, notifier, "orange.com", testLogger())
}

func TestImportHappyPath(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:20,17:00,7:40,8:00,0:20,,0,0,Non,Non,Cloud,DSI\n" +
		"E002,MARTIN,Luc,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"

	summary, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RowsImported)
	assert.Equal(t, 0, summary.RowsSkipped)
	assert.Equal(t, 1, summary.AnomalyCount)
	require.Len(t, summary.FlaggedRecordIDs, 1)

	require.Len(t, store.batches, 1)
	assert.Equal(t, "rh.admin", store.batches[0].UploadedBy)
	assert.Equal(t, "pointage.csv", store.batches[0].Filename)

	findings := store.findings[summary.FlaggedRecordIDs[0]]
	require.Len(t, findings, 1)
	assert.Equal(t, anomaly.TypeLateArrival, findings[0].Type)
	assert.Equal(t, "Entrée tardive de 0:20:00.", findings[0].Detail)
}

func TestImportSkipsEmptyMatricule(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		",DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n" +
		"E002,MARTIN,Luc,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"

	summary, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RowsImported)
	assert.Equal(t, 1, summary.RowsSkipped)
	assert.Len(t, store.records, 1)
}

func TestImportRowErrorNamesLineAndMatricule(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n" +
		"E002,MARTIN,Luc,not-a-date,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"

	_, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "E002")
}

func TestImportIsIdempotent(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:20,17:00,7:40,8:00,0:20,,0,0,Non,Non,Cloud,DSI\n"

	first, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)
	second, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Len(t, store.records, 1, "re-import must update in place, not duplicate")
	assert.Len(t, store.employees, 1)
	assert.Len(t, store.directions, 1)
	assert.Len(t, store.departments, 1)

	require.Len(t, second.FlaggedRecordIDs, 1)
	assert.Equal(t, first.FlaggedRecordIDs[0], second.FlaggedRecordIDs[0])
	assert.Len(t, store.findings[second.FlaggedRecordIDs[0]], 1, "anomalies are replaced, not accumulated")
}

func TestImportScopesDepartmentsByDirection(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n" +
		"E002,MARTIN,Luc,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,cloud,Marketing\n"

	_, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Len(t, store.directions, 2)
	assert.Len(t, store.departments, 2, "same department name under two directions stays distinct")
}

func TestImportReusesDirectionCaseInsensitively(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n" +
		"E002,MARTIN,Luc,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,CLOUD,dsi\n"

	_, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Len(t, store.directions, 1)
	assert.Len(t, store.departments, 1)
}

func TestImportSynthesizesPlaceholderEmail(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,O'NEIL,Jean-Pierre,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"

	_, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	e := store.employees["E001"]
	require.NotNil(t, e)
	require.NotNil(t, e.Email)
	assert.Equal(t, "jeanpierre.oneil.factice@orange.com", *e.Email)
}

func TestImportKeepsExistingEmail(t *testing.T) {
	store := newFakeImportStore()
	real := "marie.dupont@orange.com"
	store.employees["E001"] = &repository.Employee{ID: "emp-0", Matricule: "E001", Email: &real}
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"

	_, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Equal(t, real, *store.employees["E001"].Email, "a known address is never overwritten")
}

func TestImportSuppressesAnomaliesOnHoliday(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	// 1 May is a fixed holiday.
	input := testHeader + "\n" +
		"E001,DUPONT,Marie,01/05/2024,09:30,17:00,6:30,8:00,1:30,,0,0,Non,Non,Cloud,DSI\n"

	summary, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.AnomalyCount)
	assert.Empty(t, summary.FlaggedRecordIDs)
	for _, flags := range store.flags {
		assert.True(t, flags.Holiday)
	}
}

func TestImportMarksTeleworkDays(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,,,,8:00,,,0,0,Non,Oui,Cloud,DSI\n"

	summary, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.AnomalyCount, "telework suppresses presence expectations")
	assert.Len(t, store.telework, 1)
}

func TestImportAutoSendDispatchesAfterCommit(t *testing.T) {
	store := newFakeImportStore()
	notifier := &fakeNotifier{}
	svc := newTestImportService(store, notifier)

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:20,17:00,7:40,8:00,0:20,,0,0,Non,Non,Cloud,DSI\n" +
		"E002,MARTIN,Luc,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"

	summary, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", true)
	require.NoError(t, err)

	assert.Equal(t, summary.FlaggedRecordIDs, notifier.notified, "only flagged records get a notification")
}

func TestImportAutoSendFailuresDoNotFailImport(t *testing.T) {
	store := newFakeImportStore()
	notifier := &fakeNotifier{err: fmt.Errorf("smtp down")}
	svc := newTestImportService(store, notifier)

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:20,17:00,7:40,8:00,0:20,,0,0,Non,Non,Cloud,DSI\n"

	summary, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RowsImported)
	assert.Len(t, notifier.notified, 1)
}

func TestImportDefaultsEmptyOrgNamesToNA(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,,\n"

	_, err := svc.Import(context.Background(), strings.NewReader(input), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	_, ok := store.directions["n/a"]
	assert.True(t, ok)
}

const managerHeader = "direction_nom,departement_nom,manager_email"

func TestImportManagersAssignsAndCreatesReferences(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	input := managerHeader + "\n" +
		"DSI,Cloud,chef.cloud@orange.com\n" +
		"DSI,Reseau,chef.reseau@orange.com\n" +
		"DSI,Sans Manager,\n"

	summary, err := svc.ImportManagers(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Assigned)
	assert.Equal(t, 1, summary.RowsSkipped)
	assert.Len(t, store.directions, 1)
	assert.Len(t, store.departments, 2, "departments are created on first sight")

	dir := store.directions["dsi"]
	require.NotNil(t, dir)
	cloud := store.departments["cloud|"+dir.ID]
	require.NotNil(t, cloud)
	require.NotNil(t, cloud.ManagerEmail)
	assert.Equal(t, "chef.cloud@orange.com", *cloud.ManagerEmail)
}

func TestImportManagersReusesDepartmentsFromBadgeImport(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	badge := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:00,17:00,8:00,8:00,,,0,0,Non,Non,Cloud,DSI\n"
	_, err := svc.Import(context.Background(), strings.NewReader(badge), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)

	managers := managerHeader + "\n" +
		"dsi,CLOUD,chef.cloud@orange.com\n"
	_, err = svc.ImportManagers(context.Background(), strings.NewReader(managers))
	require.NoError(t, err)

	assert.Len(t, store.departments, 1, "manager rows match existing departments case-insensitively")
}

func TestImportManagersFeedsNotificationCc(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestImportService(store, &fakeNotifier{})

	badge := testHeader + "\n" +
		"E001,DUPONT,Marie,25/03/2024,08:20,17:00,7:40,8:00,0:20,,0,0,Non,Non,Cloud,DSI\n"
	summary, err := svc.Import(context.Background(), strings.NewReader(badge), "rh.admin", "pointage.csv", false)
	require.NoError(t, err)
	require.Len(t, summary.FlaggedRecordIDs, 1)

	managers := managerHeader + "\n" +
		"DSI,Cloud,chef.cloud@orange.com\n"
	_, err = svc.ImportManagers(context.Background(), strings.NewReader(managers))
	require.NoError(t, err)

	employee := store.employees["E001"]
	require.NotNil(t, employee)
	require.NotNil(t, employee.DepartmentID)
	var department *repository.Department
	for _, d := range store.departments {
		if d.ID == *employee.DepartmentID {
			department = d
		}
	}
	require.NotNil(t, department)

	recordID := summary.FlaggedRecordIDs[0]
	var record *repository.AttendanceRecord
	for _, r := range store.records {
		if r.ID == recordID {
			record = r
		}
	}
	require.NotNil(t, record)

	nstore := &fakeNotificationStore{
		record:   record,
		employee: employee,
		manager:  department.ManagerEmail,
		anomalies: []*repository.Anomaly{
			{ID: "an-1", RecordID: recordID, Type: anomaly.TypeLateArrival, Detail: "Entrée tardive de 0:20:00."},
		},
		sent: make(map[string]bool),
	}
	mailer := &fakeMailer{}
	notifier := NewNotificationService(nstore, mailer, testLogger())

	sent, err := notifier.Notify(context.Background(), recordID)
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, mailer.sent, 1)
	require.NotNil(t, mailer.sent[0].cc)
	assert.Equal(t, "chef.cloud@orange.com", *mailer.sent[0].cc)
}

func TestImportRejectsUnreadableReport(t *testing.T) {
	svc := newTestImportService(newFakeImportStore(), &fakeNotifier{})

	_, err := svc.Import(context.Background(), strings.NewReader("NOM,PRENOM\n"), "rh.admin", "bad.csv", false)
	require.Error(t, err)
}
