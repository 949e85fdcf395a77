// Package http implements the REST API for the lesson progression engine.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/leadpath/leadpath-engine/internal/application/command"
	"github.com/leadpath/leadpath-engine/internal/application/query"
	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "LeadPath Engine API",
		"version":     "v1",
		"description": "REST API for the lesson progression and notification scheduling engine",
		"endpoints": map[string]string{
			"health":      "/health",
			"journey":     "/api/v1/members/{id}/journey",
			"progress":    "/api/v1/members/{id}/progress",
			"preferences": "/api/v1/members/{id}/preferences",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// JOURNEY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// startJourneyRequest is the request body for starting a journey.
type startJourneyRequest struct {
	GrowthFocus          string `json:"growth_focus"`
	IntentionalAdvantage string `json:"intentional_advantage,omitempty"`
}

// handleStartJourney handles POST /api/v1/members/{id}/journey
func (s *Server) handleStartJourney(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	if memberID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID is required")
		return
	}

	if s.deps.StartJourneyHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Journey handler not configured")
		return
	}

	var req startJourneyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.StartJourneyHandler.Handle(r.Context(), command.StartJourneyCommand{
		MemberID:             memberID,
		GrowthFocus:          req.GrowthFocus,
		IntentionalAdvantage: req.IntentionalAdvantage,
		CorrelationID:        getRequestID(r.Context()),
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to start journey", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleStartLesson handles POST /api/v1/members/{id}/lessons/{lessonId}/start
func (s *Server) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	lessonID := r.PathValue("lessonId")
	if memberID == "" || lessonID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID and lesson ID are required")
		return
	}

	if s.deps.StartLessonHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lesson handler not configured")
		return
	}

	err := s.deps.StartLessonHandler.Handle(r.Context(), command.StartLessonCommand{
		MemberID: memberID,
		LessonID: lessonID,
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to start lesson", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"lesson_id": lessonID, "status": "started"})
}

// completeLessonRequest is the request body for completing a lesson.
type completeLessonRequest struct {
	Points int `json:"points"`
}

// handleCompleteLesson handles POST /api/v1/members/{id}/lessons/{lessonId}/complete
func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	lessonID := r.PathValue("lessonId")
	if memberID == "" || lessonID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID and lesson ID are required")
		return
	}

	if s.deps.CompleteLessonHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lesson handler not configured")
		return
	}

	var req completeLessonRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.CompleteLessonHandler.Handle(r.Context(), command.CompleteLessonCommand{
		MemberID:      memberID,
		LessonID:      lessonID,
		Points:        req.Points,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to complete lesson", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// setCommitmentRequest is the request body for recording a commitment.
type setCommitmentRequest struct {
	Days int    `json:"days"`
	Note string `json:"note,omitempty"`
}

// handleSetCommitment handles POST /api/v1/members/{id}/lessons/{lessonId}/commitment
func (s *Server) handleSetCommitment(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	lessonID := r.PathValue("lessonId")
	if memberID == "" || lessonID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID and lesson ID are required")
		return
	}

	if s.deps.SetCommitmentHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Commitment handler not configured")
		return
	}

	var req setCommitmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SetCommitmentHandler.Handle(r.Context(), command.SetCommitmentCommand{
		MemberID:      memberID,
		LessonID:      lessonID,
		Days:          req.Days,
		Note:          req.Note,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to set commitment", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// updatePreferencesRequest is the request body for updating preferences.
// Absent fields are left unchanged.
type updatePreferencesRequest struct {
	ActiveDays       []string `json:"active_days,omitempty"`
	UnlockHour       *int     `json:"unlock_hour,omitempty"`
	ReminderHour     *int     `json:"reminder_hour,omitempty"`
	ReminderCount    *int     `json:"reminder_count,omitempty"`
	RemindersEnabled *bool    `json:"reminders_enabled,omitempty"`
}

// handleUpdatePreferences handles PUT /api/v1/members/{id}/preferences
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	if memberID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID is required")
		return
	}

	if s.deps.UpdatePreferencesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Preferences handler not configured")
		return
	}

	var req updatePreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.UpdatePreferencesHandler.Handle(r.Context(), command.UpdatePreferencesCommand{
		MemberID: memberID,
		Updates: command.PreferenceUpdates{
			ActiveDays:       req.ActiveDays,
			UnlockHour:       req.UnlockHour,
			ReminderHour:     req.ReminderHour,
			ReminderCount:    req.ReminderCount,
			RemindersEnabled: req.RemindersEnabled,
		},
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to update preferences", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetPreferences handles GET /api/v1/members/{id}/preferences
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	if memberID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID is required")
		return
	}

	if s.deps.GetPreferencesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Preferences handler not configured")
		return
	}

	result, err := s.deps.GetPreferencesHandler.Handle(r.Context(), query.GetPreferencesQuery{MemberID: memberID})
	if err != nil {
		s.writeCommandError(w, r, "failed to get preferences", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/members/{id}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	if memberID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Member ID is required")
		return
	}

	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetProgressQuery{MemberID: memberID}

	// Optional reference date for derived statistics.
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		parsed, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "as_of must be in YYYY-MM-DD format")
			return
		}
		q.AsOf = parsed
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeCommandError(w, r, "failed to get progress", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATIVE HANDLERS - TICK REPLAY
// Переигрывание тиков за произвольный час и дату. Дата и час приходят в
// теле запроса: движок никогда не читает живые часы внутри обработчиков,
// поэтому переигранный тик неотличим от планового.
// ══════════════════════════════════════════════════════════════════════════════

// replayTickRequest is the request body for tick replay.
type replayTickRequest struct {
	Hour int    `json:"hour"`
	Date string `json:"date"` // YYYY-MM-DD
}

func (req replayTickRequest) parseDate() (time.Time, error) {
	return time.Parse("2006-01-02", req.Date)
}

// handleReplayUnlockTick handles POST /api/v1/admin/ticks/unlock
func (s *Server) handleReplayUnlockTick(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunUnlockTickHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Unlock tick handler not configured")
		return
	}

	var req replayTickRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := req.parseDate()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Date must be in YYYY-MM-DD format")
		return
	}

	result, err := s.deps.RunUnlockTickHandler.Handle(r.Context(), command.RunUnlockTickCommand{
		Hour:          req.Hour,
		Date:          date,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to replay unlock tick", err)
		return
	}

	s.logger.Info("unlock tick replayed",
		logger.Int("hour", req.Hour),
		logger.String("date", req.Date),
		logger.Int("unlocked", result.UnlockedCount),
	)

	writeJSON(w, http.StatusOK, result)
}

// handleReplayReminderTick handles POST /api/v1/admin/ticks/reminder
func (s *Server) handleReplayReminderTick(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunReminderTickHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reminder tick handler not configured")
		return
	}

	var req replayTickRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := req.parseDate()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Date must be in YYYY-MM-DD format")
		return
	}

	result, err := s.deps.RunReminderTickHandler.Handle(r.Context(), command.RunReminderTickCommand{
		Hour:          req.Hour,
		Date:          date,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeCommandError(w, r, "failed to replay reminder tick", err)
		return
	}

	s.logger.Info("reminder tick replayed",
		logger.Int("hour", req.Hour),
		logger.String("date", req.Date),
		logger.Int("notified", result.NotifiedCount),
	)

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes the request body into dst and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// writeCommandError maps domain errors to HTTP status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code := statusForError(err)

	if status >= 500 {
		s.logger.Error(msg, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
	}

	writeJSONErrorWithDetails(w, status, code, msg, err.Error())
}

// statusForError classifies a command or query error.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, member.ErrMemberNotFound),
		errors.Is(err, journey.ErrJourneyNotFound),
		errors.Is(err, journey.ErrLessonNotFound),
		errors.Is(err, journey.ErrNotMemberLesson):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, journey.ErrJourneyAlreadyActive),
		errors.Is(err, journey.ErrLessonAlreadyCompleted),
		errors.Is(err, journey.ErrLessonNotAvailable),
		errors.Is(err, journey.ErrLessonNotLocked),
		errors.Is(err, member.ErrMemberAlreadyExists):
		return http.StatusConflict, "conflict"

	case errors.Is(err, journey.ErrInvalidPoints),
		errors.Is(err, journey.ErrInvalidCommitDays),
		errors.Is(err, journey.ErrInvalidCategory),
		errors.Is(err, member.ErrInvalidUnlockHour),
		errors.Is(err, member.ErrInvalidReminderHour),
		errors.Is(err, member.ErrInvalidReminderCount),
		errors.Is(err, member.ErrEmptyActiveDays),
		errors.Is(err, member.ErrInvalidActiveDay),
		isValidationError(err):
		return http.StatusBadRequest, "invalid_request"

	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// isValidationError recognizes the "field is required" errors the command
// Validate methods produce.
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "is required") || strings.Contains(msg, "must be")
}
