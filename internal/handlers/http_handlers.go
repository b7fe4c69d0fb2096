// Package handlers exposes the inspection engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sitewatch/inspection-engine/internal/access"
	"github.com/sitewatch/inspection-engine/internal/config"
	"github.com/sitewatch/inspection-engine/internal/database"
	"github.com/sitewatch/inspection-engine/internal/inspection"
	"github.com/sitewatch/inspection-engine/internal/lifecycle"
	"github.com/sitewatch/inspection-engine/internal/linkage"
	"github.com/sitewatch/inspection-engine/internal/metrics"
	"github.com/sitewatch/inspection-engine/internal/middleware"
	"github.com/sitewatch/inspection-engine/internal/scheduler"
	"github.com/sitewatch/inspection-engine/internal/schema"
)

// HTTPHandler handles HTTP requests for the inspection engine
type HTTPHandler struct {
	config           *config.Config
	logger           *slog.Logger
	service          *inspection.Service
	schemaStore      *schema.Store
	faultRepo        *database.FaultRepository
	inspectionRepo   *database.InspectionRepository
	notificationRepo *database.NotificationRepository
	accessCtrl       *access.Controller
	scheduler        *scheduler.Scheduler
	collector        *metrics.Collector
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	cfg *config.Config,
	logger *slog.Logger,
	service *inspection.Service,
	schemaStore *schema.Store,
	faultRepo *database.FaultRepository,
	inspectionRepo *database.InspectionRepository,
	notificationRepo *database.NotificationRepository,
	accessCtrl *access.Controller,
	taskScheduler *scheduler.Scheduler,
	collector *metrics.Collector,
) *HTTPHandler {
	return &HTTPHandler{
		config:           cfg,
		logger:           logger,
		service:          service,
		schemaStore:      schemaStore,
		faultRepo:        faultRepo,
		inspectionRepo:   inspectionRepo,
		notificationRepo: notificationRepo,
		accessCtrl:       accessCtrl,
		scheduler:        taskScheduler,
		collector:        collector,
	}
}

// RegisterRoutes registers HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/status", h.handleStatus).Methods("GET")

	inspectionRouter := router.PathPrefix("/inspections").Subrouter()
	inspectionRouter.HandleFunc("", h.handleSubmitInspection).Methods("POST")
	inspectionRouter.HandleFunc("", h.handleListInspections).Methods("GET")
	inspectionRouter.HandleFunc("/{id}", h.handleGetInspection).Methods("GET")

	faultRouter := router.PathPrefix("/faults").Subrouter()
	faultRouter.HandleFunc("", h.handleReportFault).Methods("POST")
	faultRouter.HandleFunc("", h.handleListFaults).Methods("GET")
	faultRouter.HandleFunc("/stats", h.handleFaultStats).Methods("GET")
	faultRouter.HandleFunc("/escalations", h.handleListEscalations).Methods("GET")
	faultRouter.HandleFunc("/{id}", h.handleGetFault).Methods("GET")
	faultRouter.HandleFunc("/{id}/status", h.handleUpdateFaultStatus).Methods("POST")
	faultRouter.HandleFunc("/{id}/reopen", h.handleReopenFault).Methods("POST")
	faultRouter.HandleFunc("/{id}/technician", h.handleAssignTechnician).Methods("POST")
	faultRouter.HandleFunc("/{id}/notifications", h.handleFaultNotifications).Methods("GET")

	schemaRouter := router.PathPrefix("/schemas").Subrouter()
	schemaRouter.HandleFunc("", h.handleCreateSchema).Methods("POST")
	schemaRouter.HandleFunc("", h.handleListSchemas).Methods("GET")
	schemaRouter.HandleFunc("/{id}", h.handleGetSchema).Methods("GET")
	schemaRouter.HandleFunc("/{id}/versions/{version}", h.handleGetSchemaVersion).Methods("GET")
	schemaRouter.HandleFunc("/{id}/fields", h.handleUpsertField).Methods("PUT")
	schemaRouter.HandleFunc("/{id}/fields/{fieldId}/enabled", h.handleSetFieldEnabled).Methods("POST")
	schemaRouter.HandleFunc("/{id}/fields/{fieldId}/options", h.handleAppendOption).Methods("POST")

	accessRouter := router.PathPrefix("/access").Subrouter()
	accessRouter.HandleFunc("/matrix", h.handleGetAccessMatrix).Methods("GET")
	accessRouter.HandleFunc("/matrix", h.handleReplaceAccessMatrix).Methods("PUT")

	schedulerRouter := router.PathPrefix("/scheduler").Subrouter()
	schedulerRouter.HandleFunc("/tasks", h.handleListTasks).Methods("GET")
	schedulerRouter.HandleFunc("/tasks/{id}/execute", h.handleExecuteTask).Methods("POST")
}

// Health and status

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	tasks := make([]map[string]interface{}, 0)
	for _, task := range h.scheduler.Tasks() {
		tasks = append(tasks, map[string]interface{}{
			"id":          task.ID,
			"schedule":    task.Schedule,
			"enabled":     task.Enabled,
			"last_run":    task.LastRun,
			"run_count":   task.RunCount,
			"error_count": task.ErrorCount,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"environment":    h.config.Environment,
		"access_version": h.accessCtrl.Current().Version,
		"tasks":          tasks,
	})
}

// Inspections

type submitInspectionRequest struct {
	SchemaID    string                        `json:"schema_id"`
	Site        string                        `json:"site"`
	Answers     map[string]string             `json:"answers"`
	Resolutions map[string]linkage.Resolution `json:"resolutions"`
}

func (h *HTTPHandler) handleSubmitInspection(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.require(w, r, access.PermSubmitInspection)
	if !ok {
		return
	}

	var req submitInspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SchemaID == "" || req.Site == "" {
		h.writeError(w, http.StatusBadRequest, "schema_id and site are required")
		return
	}

	submission, err := h.service.SubmitInspection(r.Context(), inspection.SubmitRequest{
		SchemaID:    req.SchemaID,
		Site:        req.Site,
		Inspector:   principal.UserID,
		Answers:     req.Answers,
		Resolutions: req.Resolutions,
	})

	var validationErr *inspection.ValidationFailedError
	if errors.As(err, &validationErr) {
		h.collector.RecordRejection()
		for _, fieldErr := range validationErr.Result.Errors {
			h.collector.RecordValidationError(string(fieldErr.Code))
		}
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"errors": validationErr.Result.Errors,
		})
		return
	}
	if err != nil {
		h.collector.RecordRejection()
		h.writeDomainError(w, err)
		return
	}

	h.collector.RecordSubmission()
	for _, fault := range submission.NewFaults {
		h.collector.RecordFaultCreated(fault.Type)
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"inspection":  submission.Inspection,
		"new_faults":  submission.NewFaults,
		"fault_links": submission.Links,
	})
}

func (h *HTTPHandler) handleListInspections(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewInspections); !ok {
		return
	}

	filter := h.parseFilter(r)
	inspections, total, err := h.inspectionRepo.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"inspections": inspections,
		"total":       total,
	})
}

func (h *HTTPHandler) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewInspections); !ok {
		return
	}

	id := mux.Vars(r)["id"]
	insp, err := h.inspectionRepo.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	links, err := h.inspectionRepo.GetLinks(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"inspection":  insp,
		"fault_links": links,
	})
}

// Faults

type reportFaultRequest struct {
	Site                 string             `json:"site"`
	Type                 database.FaultType `json:"type"`
	Description          string             `json:"description"`
	IsCritical           bool               `json:"is_critical"`
	IsPartiallyDisabling bool               `json:"is_partially_disabling"`
}

func (h *HTTPHandler) handleReportFault(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.require(w, r, access.PermReportFault)
	if !ok {
		return
	}

	var req reportFaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Site == "" {
		h.writeError(w, http.StatusBadRequest, "site is required")
		return
	}

	fault, err := h.service.ReportFault(r.Context(), req.Site, req.Type, req.Description,
		req.IsCritical, req.IsPartiallyDisabling, principal.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.collector.RecordFaultCreated(fault.Type)
	h.writeJSON(w, http.StatusCreated, h.faultView(fault))
}

func (h *HTTPHandler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewFaults); !ok {
		return
	}

	filter := h.parseFilter(r)
	filter.Status = r.URL.Query().Get("status")

	faults, total, err := h.faultRepo.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(faults))
	for _, fault := range faults {
		views = append(views, h.faultView(fault))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"faults": views,
		"total":  total,
	})
}

func (h *HTTPHandler) handleGetFault(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewFaults); !ok {
		return
	}

	fault, err := h.faultRepo.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view := h.faultView(fault)
	links, err := h.inspectionRepo.GetLinksByFault(r.Context(), fault.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	view["fault_links"] = links

	h.writeJSON(w, http.StatusOK, view)
}

type updateStatusRequest struct {
	Status database.FaultStatus `json:"status"`
}

func (h *HTTPHandler) handleUpdateFaultStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.require(w, r, access.PermUpdateFaultStatus)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fault, err := h.service.UpdateFaultStatus(r.Context(), mux.Vars(r)["id"], req.Status, principal.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.collector.RecordTransition(fault.Status)
	h.writeJSON(w, http.StatusOK, h.faultView(fault))
}

func (h *HTTPHandler) handleReopenFault(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.require(w, r, access.PermReopenFault)
	if !ok {
		return
	}

	fault, err := h.service.ReopenFault(r.Context(), mux.Vars(r)["id"], principal.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.collector.RecordTransition(fault.Status)
	h.writeJSON(w, http.StatusOK, h.faultView(fault))
}

type assignTechnicianRequest struct {
	Technician string `json:"technician"`
}

func (h *HTTPHandler) handleAssignTechnician(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.require(w, r, access.PermUpdateFaultStatus)
	if !ok {
		return
	}

	var req assignTechnicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Technician == "" {
		h.writeError(w, http.StatusBadRequest, "technician is required")
		return
	}

	fault, err := h.service.AssignTechnician(r.Context(), mux.Vars(r)["id"], req.Technician, principal.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.faultView(fault))
}

func (h *HTTPHandler) handleFaultStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewFaults); !ok {
		return
	}

	cutoff := time.Now().Add(-h.config.Escalation.OverdueAfter)
	stats, err := h.faultRepo.GetStats(r.Context(), cutoff)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) handleListEscalations(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewFaults); !ok {
		return
	}

	now := time.Now()
	if raw := r.URL.Query().Get("now"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "now must be RFC3339")
			return
		}
		now = parsed
	}

	faults, err := h.service.PollEscalations(r.Context(), now)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(faults))
	for _, fault := range faults {
		views = append(views, h.faultView(fault))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"faults": views,
		"as_of":  now,
	})
}

func (h *HTTPHandler) handleFaultNotifications(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewFaults); !ok {
		return
	}

	notifications, err := h.notificationRepo.ListByFault(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

// Schemas

type createSchemaRequest struct {
	Name     string                   `json:"name"`
	Category schema.Category          `json:"category"`
	Fields   []schema.FieldDefinition `json:"fields"`
}

func (h *HTTPHandler) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageSchemas); !ok {
		return
	}

	var req createSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sc := &schema.Schema{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Category: req.Category,
		Fields:   req.Fields,
	}
	if err := h.schemaStore.Create(r.Context(), sc); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, sc)
}

func (h *HTTPHandler) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewInspections); !ok {
		return
	}

	schemas, err := h.schemaStore.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"schemas": schemas})
}

func (h *HTTPHandler) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewInspections); !ok {
		return
	}

	sc, err := h.schemaStore.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sc)
}

func (h *HTTPHandler) handleGetSchemaVersion(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermViewInspections); !ok {
		return
	}

	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "version must be an integer")
		return
	}

	sc, err := h.schemaStore.GetVersion(r.Context(), vars["id"], version)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sc)
}

func (h *HTTPHandler) handleUpsertField(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageSchemas); !ok {
		return
	}

	var field schema.FieldDefinition
	if err := json.NewDecoder(r.Body).Decode(&field); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sc, err := h.schemaStore.UpsertField(r.Context(), mux.Vars(r)["id"], field)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sc)
}

type setFieldEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *HTTPHandler) handleSetFieldEnabled(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageSchemas); !ok {
		return
	}

	var req setFieldEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vars := mux.Vars(r)
	sc, err := h.schemaStore.SetFieldEnabled(r.Context(), vars["id"], vars["fieldId"], req.Enabled)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sc)
}

type appendOptionRequest struct {
	Option string `json:"option"`
}

func (h *HTTPHandler) handleAppendOption(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageSchemas); !ok {
		return
	}

	var req appendOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vars := mux.Vars(r)
	sc, err := h.schemaStore.AppendOption(r.Context(), vars["id"], vars["fieldId"], req.Option)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sc)
}

// Access matrix

func (h *HTTPHandler) handleGetAccessMatrix(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageAccess); !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, h.accessCtrl.Current())
}

func (h *HTTPHandler) handleReplaceAccessMatrix(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageAccess); !ok {
		return
	}

	var grants map[access.Role][]access.Permission
	if err := json.NewDecoder(r.Body).Decode(&grants); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matrix := h.accessCtrl.Replace(grants)
	h.writeJSON(w, http.StatusOK, matrix)
}

// Scheduler

func (h *HTTPHandler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageAccess); !ok {
		return
	}

	h.handleStatus(w, r)
}

func (h *HTTPHandler) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, access.PermManageAccess); !ok {
		return
	}

	if err := h.scheduler.ExecuteTaskNow(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "executing"})
}

// Helpers

func (h *HTTPHandler) require(w http.ResponseWriter, r *http.Request, perm access.Permission) (*middleware.Principal, bool) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	if !h.accessCtrl.Allows(principal.Role, perm) {
		h.writeError(w, http.StatusForbidden, fmt.Sprintf("role %s lacks permission %s", principal.Role, perm))
		return nil, false
	}
	return principal, true
}

// faultView decorates a fault with its derived lifecycle values.
func (h *HTTPHandler) faultView(fault *database.Fault) map[string]interface{} {
	view := map[string]interface{}{
		"fault":      fault,
		"is_overdue": fault.Status != database.FaultClosed && time.Since(fault.ReportedTime) >= h.config.Escalation.OverdueAfter,
	}
	if hours, ok := h.service.TreatmentDuration(fault); ok {
		view["treatment_duration_hours"] = hours
	}
	return view
}

func (h *HTTPHandler) parseFilter(r *http.Request) database.Filter {
	query := r.URL.Query()
	filter := database.Filter{
		Site:  query.Get("site"),
		Limit: 50,
	}

	if raw := query.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if raw := query.Get("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateFrom = &from
		}
	}
	if raw := query.Get("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateTo = &to
		}
	}

	return filter
}

// writeDomainError maps domain errors onto HTTP statuses per the error
// taxonomy: caller-correctable input problems, aborted submissions, state
// errors and retryable conflicts.
func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schema.ErrSchemaNotFound),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, schema.ErrFieldNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, linkage.ErrFaultNotFound),
		errors.Is(err, linkage.ErrFaultAlreadyClosed),
		errors.Is(err, linkage.ErrUnresolvedFaultLink),
		errors.Is(err, lifecycle.ErrDescriptionRequired):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrConflict):
		h.collector.RecordConflict()
		h.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     err.Error(),
			"retryable": true,
		})
	case errors.Is(err, schema.ErrInvalidFieldKind),
		errors.Is(err, schema.ErrDuplicateField),
		errors.Is(err, schema.ErrDuplicateOption):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
