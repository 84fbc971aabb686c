package service

import (
	"bytes"
	"context"
	"html/template"

	"github.com/hrops/be-hr-attendance/internal/errors"
	"github.com/hrops/be-hr-attendance/internal/logger"
	"github.com/hrops/be-hr-attendance/internal/repository"
)

// Mailer delivers one HTML email. cc may be nil when there is no manager
// to copy.
type Mailer interface {
	Send(ctx context.Context, to string, cc *string, subject, htmlBody string) error
}

// NotificationService handles anomaly email notification business logic.
type NotificationService struct {
	store  repository.NotificationStore
	mailer Mailer
	log    *logger.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(
	store repository.NotificationStore,
	mailer Mailer,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		store:  store,
		mailer: mailer,
		log:    log,
	}
}

var emailBodyTmpl = template.Must(template.New("anomalies").Parse(`<html>
<body>
<p>Bonjour {{.FirstName}} {{.LastName}},</p>
<p>Des anomalies de pointage ont été détectées pour la journée du {{.Date}} :</p>
<ul>
{{- range .Anomalies}}
<li>{{.Detail}}</li>
{{- end}}
</ul>
<p>Merci de régulariser votre situation auprès de votre manager ou du service RH.</p>
<p>Cordialement,<br>Service RH</p>
</body>
</html>
`))

type emailBodyData struct {
	FirstName string
	LastName  string
	Date      string
	Anomalies []*repository.Anomaly
}

// Notify sends the anomaly email for one attendance record at most once.
// The returned bool reports whether a message was actually sent: false with
// a nil error means the gate declined (already sent, no address, nothing to
// report) or delivery failed and was recorded as FAILED. Delivery errors
// never propagate.
func (s *NotificationService) Notify(ctx context.Context, recordID string) (bool, error) {
	sent, err := s.store.HasSent(ctx, recordID)
	if err != nil {
		return false, err
	}
	if sent {
		s.log.Debug().
			Str("record_id", recordID).
			Msg("Notification already sent; skipping")
		return false, nil
	}

	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return false, err
	}

	anomalies, err := s.store.ListAnomaliesForRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	if len(anomalies) == 0 {
		return false, nil
	}

	employee, err := s.store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		return false, err
	}
	if employee.Email == nil || *employee.Email == "" {
		s.log.Warn().
			Str("record_id", recordID).
			Str("matricule", employee.Matricule).
			Msg("Employee has no email address; notification skipped")
		return false, nil
	}

	var managerEmail *string
	if employee.DepartmentID != nil {
		managerEmail, err = s.store.ManagerEmailForDepartment(ctx, *employee.DepartmentID)
		if err != nil && !errors.IsNotFound(err) {
			return false, err
		}
	}

	subject := "Anomalies de pointage - " + rec.Date.Format("02/01/2006")

	var body bytes.Buffer
	err = emailBodyTmpl.Execute(&body, emailBodyData{
		FirstName: employee.FirstName,
		LastName:  employee.LastName,
		Date:      rec.Date.Format("02/01/2006"),
		Anomalies: anomalies,
	})
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to render notification body")
	}

	entry := &repository.EmailHistoryEntry{
		ToEmail:      *employee.Email,
		CcManager:    managerEmail,
		Subject:      subject,
		Body:         body.String(),
		Status:       repository.StatusSent,
		EmployeeID:   &employee.ID,
		ManagerEmail: managerEmail,
		BatchID:      rec.BatchID,
		RecordID:     &rec.ID,
	}

	if sendErr := s.mailer.Send(ctx, *employee.Email, managerEmail, subject, body.String()); sendErr != nil {
		s.log.Warn().Err(sendErr).
			Str("record_id", recordID).
			Str("to", *employee.Email).
			Msg("Notification delivery failed")

		entry.Status = repository.StatusFailed
		entry.Body = sendErr.Error()
		if err := s.store.AppendHistory(ctx, entry); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.store.AppendHistory(ctx, entry); err != nil {
		return false, err
	}

	s.log.Info().
		Str("record_id", recordID).
		Str("to", *employee.Email).
		Time("date", rec.Date).
		Msg("Anomaly notification sent")

	return true, nil
}

// History lists past notification attempts, newest first.
func (s *NotificationService) History(ctx context.Context, limit, offset int) ([]*repository.EmailHistoryEntry, int64, error) {
	return s.store.ListHistory(ctx, limit, offset)
}
