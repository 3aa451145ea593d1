package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"placement-portal/internal/apperr"
	"placement-portal/internal/eligibility"
	"placement-portal/internal/ledger"
	"placement-portal/internal/model"
	"placement-portal/internal/registry"
	"placement-portal/internal/storage"
)

// UserHeader 携带已认证调用方的用户 ID，由前置网关写入。
const UserHeader = "X-User-ID"

// Service 抽象业务入口。
type Service interface {
	CreateDrive(ctx context.Context, req registry.CreateRequest, creatorID string) (*model.Drive, error)
	GetDrive(ctx context.Context, driveID string) (*model.Drive, error)
	ListDrives(ctx context.Context, q storage.DriveQuery) ([]model.Drive, error)
	ChangeDriveStatus(ctx context.Context, driveID string, to model.DriveStatus, actorID string) (*model.Drive, error)
	DeleteDrive(ctx context.Context, driveID, actorID string) error
	ApplyToDrive(ctx context.Context, driveID, studentID string) (*model.Application, error)
	CheckEligibility(ctx context.Context, driveID, studentID string) (eligibility.Result, error)
	ListEligibleStudents(ctx context.Context, driveID, actorID string) ([]model.User, error)
	GetEligibleDrives(ctx context.Context, studentID string) ([]model.Drive, error)
	ListApplications(ctx context.Context, q storage.ApplicationQuery, actorID string) ([]model.Application, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, to model.ApplicationStatus, actorID string) (*model.Application, error)
	WithdrawApplication(ctx context.Context, applicationID, studentID string) (*model.Application, error)
	ScheduleInterview(ctx context.Context, applicationID string, schedule ledger.Schedule, actorID string) (*model.Application, error)
	Notifications(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error
}

// statusRequest 是修改 drive 或申请状态的请求体。
type statusRequest struct {
	Status string `json:"status"`
}

// errorResponse 是统一错误响应，Reasons 仅在资格校验失败时出现。
type errorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(svc Service, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.New(os.Stdout, "[api] ", log.LstdFlags)
	}
	h := &handler{svc: svc, logger: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/drives", h.listDrives)
	mux.HandleFunc("POST /api/drives", h.createDrive)
	mux.HandleFunc("GET /api/drives/{id}", h.getDrive)
	mux.HandleFunc("DELETE /api/drives/{id}", h.deleteDrive)
	mux.HandleFunc("POST /api/drives/{id}/status", h.changeDriveStatus)
	mux.HandleFunc("POST /api/drives/{id}/apply", h.apply)
	mux.HandleFunc("GET /api/drives/{id}/eligibility", h.eligibility)
	mux.HandleFunc("GET /api/drives/{id}/eligible-students", h.eligibleStudents)
	mux.HandleFunc("GET /api/eligible-drives", h.eligibleDrives)

	mux.HandleFunc("GET /api/applications", h.listApplications)
	mux.HandleFunc("PATCH /api/applications/{id}/status", h.updateApplicationStatus)
	mux.HandleFunc("POST /api/applications/{id}/withdraw", h.withdraw)
	mux.HandleFunc("POST /api/applications/{id}/interview", h.scheduleInterview)

	mux.HandleFunc("GET /api/notifications", h.notifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.markRead)

	return mux
}

type handler struct {
	svc    Service
	logger *log.Logger
}

func (h *handler) listDrives(w http.ResponseWriter, r *http.Request) {
	limit, page := pagination(r)
	q := storage.DriveQuery{
		CompanyName: strings.TrimSpace(r.URL.Query().Get("company")),
		Limit:       limit + 1,
		Offset:      (page - 1) * limit,
	}
	for _, s := range splitList(r.URL.Query().Get("status")) {
		q.Statuses = append(q.Statuses, model.DriveStatus(s))
	}

	drives, err := h.svc.ListDrives(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	hasMore := false
	if len(drives) > limit {
		hasMore = true
		drives = drives[:limit]
	}
	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Has-More", strconv.FormatBool(hasMore))
	writeJSON(w, http.StatusOK, drives)
}

func (h *handler) createDrive(w http.ResponseWriter, r *http.Request) {
	var req registry.CreateRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.CreateDrive(r.Context(), req, caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *handler) getDrive(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDrive(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) deleteDrive(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDrive(r.Context(), r.PathValue("id"), caller(r)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *handler) changeDriveStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.ChangeDriveStatus(r.Context(), r.PathValue("id"), model.DriveStatus(req.Status), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) apply(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.ApplyToDrive(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *handler) eligibility(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CheckEligibility(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) eligibleStudents(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListEligibleStudents(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *handler) eligibleDrives(w http.ResponseWriter, r *http.Request) {
	drives, err := h.svc.GetEligibleDrives(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drives)
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	q := storage.ApplicationQuery{DriveID: strings.TrimSpace(r.URL.Query().Get("drive_id"))}
	for _, s := range splitList(r.URL.Query().Get("status")) {
		q.Statuses = append(q.Statuses, model.ApplicationStatus(s))
	}
	apps, err := h.svc.ListApplications(r.Context(), q, caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *handler) updateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	app, err := h.svc.UpdateApplicationStatus(r.Context(), r.PathValue("id"), model.ApplicationStatus(req.Status), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.WithdrawApplication(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handler) scheduleInterview(w http.ResponseWriter, r *http.Request) {
	var req ledger.Schedule
	if !decode(w, r, &req) {
		return
	}
	app, err := h.svc.ScheduleInterview(r.Context(), r.PathValue("id"), req, caller(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handler) notifications(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.svc.Notifications(r.Context(), caller(r), unread)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNotificationRead(r.Context(), r.PathValue("id"), caller(r)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Printf("internal error: %v", err)
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	writeJSON(w, status, errorResponse{Error: msg, Reasons: apperr.ReasonsOf(err)})
}

func caller(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return false
	}
	return true
}

func pagination(r *http.Request) (limit, page int) {
	limit = 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	page = 1
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	return limit, page
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
