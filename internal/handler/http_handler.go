package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/hrops/be-hr-attendance/internal/errors"
	"github.com/hrops/be-hr-attendance/internal/logger"
	"github.com/hrops/be-hr-attendance/internal/repository"
	"github.com/hrops/be-hr-attendance/internal/service"
)

const maxReportUploadBytes = 32 << 20

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	importService       *service.ImportService
	notificationService *service.NotificationService
	attendanceService   *service.AttendanceService
	autoSendDefault     bool
	log                 *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	importService *service.ImportService,
	notificationService *service.NotificationService,
	attendanceService *service.AttendanceService,
	autoSendDefault bool,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		importService:       importService,
		notificationService: notificationService,
		attendanceService:   attendanceService,
		autoSendDefault:     autoSendDefault,
		log:                 log,
	}
}

// statusFor maps application error codes to HTTP statuses.
func statusFor(err error) int {
	switch apperrors.Code(err) {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ImportReport handles badge report upload HTTP requests
func (h *HTTPHandler) ImportReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxReportUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A 'file' upload is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	uploadedBy := r.FormValue("uploaded_by")
	if uploadedBy == "" {
		http.Error(w, "The 'uploaded_by' field is required", http.StatusBadRequest)
		return
	}

	autoSend := h.autoSendDefault
	if raw := r.URL.Query().Get("auto_send"); raw != "" {
		autoSend, _ = strconv.ParseBool(raw)
	}

	summary, err := h.importService.Import(r.Context(), file, uploadedBy, header.Filename, autoSend)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(summary)
}

// ImportManagers handles manager assignment upload HTTP requests
func (h *HTTPHandler) ImportManagers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxReportUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A 'file' upload is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	summary, err := h.importService.ImportManagers(r.Context(), file)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(summary)
}

// SendNotification handles notification dispatch HTTP requests
func (h *HTTPHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RecordID string `json:"record_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecordID == "" {
		http.Error(w, "record_id is required", http.StatusBadRequest)
		return
	}

	sent, err := h.notificationService.Notify(r.Context(), req.RecordID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"record_id": req.RecordID,
		"sent":      sent,
	})
}

// ListAttendance handles attendance listing HTTP requests
func (h *HTTPHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	var filter repository.RecordFilter
	if v := q.Get("matricule"); v != "" {
		filter.Matricule = &v
	}
	if v := q.Get("direction"); v != "" {
		filter.Direction = &v
	}
	if v := q.Get("department"); v != "" {
		filter.Department = &v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "Invalid 'from' date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "Invalid 'to' date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.To = &t
	}
	if v := q.Get("with_anomalies"); v != "" {
		filter.WithAnomalies, _ = strconv.ParseBool(v)
	}

	page, pageSize := pagination(q.Get("page"), q.Get("page_size"))

	records, total, err := h.attendanceService.List(r.Context(), filter, pageSize, (page-1)*pageSize)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"records":  records,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetAttendance handles single record HTTP requests
func (h *HTTPHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Record ID is required", http.StatusBadRequest)
		return
	}

	detail, err := h.attendanceService.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// AnomalySummary handles anomaly aggregation HTTP requests
func (h *HTTPHandler) AnomalySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.attendanceService.AnomalySummary(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// ListNotifications handles email history HTTP requests
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page, pageSize := pagination(r.URL.Query().Get("page"), r.URL.Query().Get("page_size"))

	entries, total, err := h.notificationService.History(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"notifications": entries,
		"total":         total,
		"page":          page,
		"pageSize":      pageSize,
	})
}

// Holidays handles holiday table HTTP requests
func (h *HTTPHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		holidays, err := h.attendanceService.Holidays(r.Context())
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"holidays": holidays})

	case http.MethodPost:
		var req struct {
			Date  string `json:"date"`
			Label string `json:"label"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "Invalid 'date', expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		holiday, err := h.attendanceService.AddHoliday(r.Context(), date, req.Label)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(holiday)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func pagination(rawPage, rawSize string) (int, int) {
	page, _ := strconv.Atoi(rawPage)
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(rawSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	return page, pageSize
}
