package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/services"
	"juju/internal/storage"
	"juju/internal/structures"
	"juju/internal/validation"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const dateLayout = "2006-01-02"

type ApiController struct {
	logger   providers.Logger
	service  services.SessionServiceInterface
	location *time.Location
}

func NewApiController(logger providers.Logger, service services.SessionServiceInterface, conf *structures.Config) *ApiController {
	return &ApiController{
		logger:   logger,
		service:  service,
		location: conf.Location(),
	}
}

type sessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
	Warnings []string         `json:"warnings,omitempty"`
}

type startRequest struct {
	ProjectID      string  `json:"project_id"`
	ActivityTypeID *string `json:"activity_type_id,omitempty"`
}

type idRequest struct {
	ID string `json:"id"`
}

type deleteResponse struct {
	Archived bool `json:"archived"`
}

type repairRequest struct {
	Policy string `json:"policy"`
}

type orphansResponse struct {
	Count int `json:"count"`
}

func (ac *ApiController) ListSessions(w http.ResponseWriter, r *http.Request) {
	rng, err := ac.dateRange(r)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	var (
		sessions []models.Session
		report   storage.LoadReport
	)
	if rng == nil {
		sessions, report, err = ac.service.QueryAllSessions(r.Context(), nil)
	} else {
		sessions, report, err = ac.service.QueryByDateInterval(r.Context(), *rng)
	}
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, newSessionsResponse(sessions, report))
}

func (ac *ApiController) SessionsByProject(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sessions, report, err := ac.service.QueryByProject(r.Context(), id)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, newSessionsResponse(sessions, report))
}

func (ac *ApiController) Aggregate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("project")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	agg, err := ac.service.GetProjectAggregate(r.Context(), id)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, agg)
}

func (ac *ApiController) ActiveSession(w http.ResponseWriter, r *http.Request) {
	handle, ok := ac.service.ActiveSession()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ac.writeJSON(w, http.StatusOK, handle)
}

func (ac *ApiController) StartSession(w http.ResponseWriter, r *http.Request) {
	var payload startRequest
	if !ac.decode(w, r, &payload) {
		return
	}
	handle, err := ac.service.StartSession(r.Context(), payload.ProjectID, payload.ActivityTypeID)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusCreated, handle)
}

func (ac *ApiController) EndSession(w http.ResponseWriter, r *http.Request) {
	var payload services.EndRequest
	if !ac.decode(w, r, &payload) {
		return
	}
	session, err := ac.service.EndSession(r.Context(), payload)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusCreated, session)
}

func (ac *ApiController) CancelSession(w http.ResponseWriter, r *http.Request) {
	handle, ok := ac.service.CancelActive()
	if !ok {
		ac.writeError(w, r, apperrors.NewNoActiveSessionError())
		return
	}
	ac.writeJSON(w, http.StatusOK, handle)
}

func (ac *ApiController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var payload models.Session
	if !ac.decode(w, r, &payload) {
		return
	}
	session, err := ac.service.CreateSession(r.Context(), payload)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusCreated, session)
}

func (ac *ApiController) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var payload models.Session
	if !ac.decode(w, r, &payload) {
		return
	}
	if payload.ID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	session, err := ac.service.UpdateSessionFull(r.Context(), payload.ID, payload)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, session)
}

func (ac *ApiController) DeleteSession(w http.ResponseWriter, r *http.Request) {
	var payload idRequest
	if !ac.decode(w, r, &payload) {
		return
	}
	if err := ac.service.DeleteSession(r.Context(), payload.ID); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) ListProjects(w http.ResponseWriter, r *http.Request) {
	ac.writeJSON(w, http.StatusOK, ac.service.ListProjects())
}

// SaveProject creates the project when it has no id and replaces it otherwise.
func (ac *ApiController) SaveProject(w http.ResponseWriter, r *http.Request) {
	var payload models.Project
	if !ac.decode(w, r, &payload) {
		return
	}
	var (
		project models.Project
		err     error
		status  = http.StatusOK
	)
	if payload.ID == "" {
		project, err = ac.service.CreateProject(payload)
		status = http.StatusCreated
	} else {
		project, err = ac.service.UpdateProject(r.Context(), payload)
	}
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, status, project)
}

func (ac *ApiController) DeleteProject(w http.ResponseWriter, r *http.Request) {
	var payload idRequest
	if !ac.decode(w, r, &payload) {
		return
	}
	archived, err := ac.service.DeleteProject(r.Context(), payload.ID)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, deleteResponse{Archived: archived})
}

func (ac *ApiController) ListActivityTypes(w http.ResponseWriter, r *http.Request) {
	ac.writeJSON(w, http.StatusOK, ac.service.ListActivityTypes())
}

func (ac *ApiController) SaveActivityType(w http.ResponseWriter, r *http.Request) {
	var payload models.ActivityType
	if !ac.decode(w, r, &payload) {
		return
	}
	var (
		activityType models.ActivityType
		err          error
		status       = http.StatusOK
	)
	if payload.ID == "" {
		activityType, err = ac.service.CreateActivityType(payload)
		status = http.StatusCreated
	} else {
		activityType, err = ac.service.UpdateActivityType(payload)
	}
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, status, activityType)
}

func (ac *ApiController) DeleteActivityType(w http.ResponseWriter, r *http.Request) {
	var payload idRequest
	if !ac.decode(w, r, &payload) {
		return
	}
	archived, err := ac.service.DeleteActivityType(r.Context(), payload.ID)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, deleteResponse{Archived: archived})
}

func (ac *ApiController) Orphans(w http.ResponseWriter, r *http.Request) {
	count, err := ac.service.CountOrphans(r.Context())
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, orphansResponse{Count: count})
}

func (ac *ApiController) RepairOrphans(w http.ResponseWriter, r *http.Request) {
	var payload repairRequest
	if !ac.decode(w, r, &payload) {
		return
	}
	policy, err := validation.ParsePolicy(payload.Policy)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	result, err := ac.service.RepairOrphans(r.Context(), policy)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.writeJSON(w, http.StatusOK, result)
}

// dateRange reads from and to, each a date or an RFC3339 timestamp. Both or
// neither must be given; a date-only to includes that whole day.
func (ac *ApiController) dateRange(r *http.Request) (*models.DateRange, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, apperrors.NewValidationError("from and to must be given together", nil)
	}
	start, _, err := ac.parseTime(from)
	if err != nil {
		return nil, err
	}
	end, dateOnly, err := ac.parseTime(to)
	if err != nil {
		return nil, err
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1)
	}
	return &models.DateRange{From: start, To: end}, nil
}

func (ac *ApiController) parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, raw, ac.location); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, apperrors.NewValidationError("invalid time "+raw, err)
	}
	return t, false, nil
}

func (ac *ApiController) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

func (ac *ApiController) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	ac.writeJSON(w, status, errorResponse{
		Error:   appErr.Type.String(),
		Code:    appErr.Code,
		Message: appErr.Message,
		Context: appErr.Context,
	})
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation,
		apperrors.ErrorTypeInvalidInterval,
		apperrors.ErrorTypeAmbiguousHour,
		apperrors.ErrorTypeMalformedRecord:
		return http.StatusBadRequest
	case apperrors.ErrorTypeReferential, apperrors.ErrorTypeUnknownProject:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeSessionAlreadyActive,
		apperrors.ErrorTypeNoActiveSession,
		apperrors.ErrorTypeMigrationRequired:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newSessionsResponse(sessions []models.Session, report storage.LoadReport) sessionsResponse {
	if sessions == nil {
		sessions = []models.Session{}
	}
	resp := sessionsResponse{Sessions: sessions}
	for _, q := range report.Quarantined {
		resp.Warnings = append(resp.Warnings, "unit quarantined: "+q)
	}
	for _, issue := range report.RowErrors {
		resp.Warnings = append(resp.Warnings, strings.TrimSpace(issue.Error()))
	}
	return resp
}
