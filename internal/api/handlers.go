package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-scheduling/internal/appointment"
	"github.com/hackgods/dental-clinic-scheduling/internal/auth"
	"github.com/hackgods/dental-clinic-scheduling/internal/scheduling"
)

type handlers struct {
	svc AppointmentService
	loc *time.Location
	log zerolog.Logger
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req scheduling.Request
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.Validate(r.Context(), actor, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req appointment.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b, err := h.svc.Create(r.Context(), actor, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookingResponse{
		Appointment: toAppointmentResponse(b.Appointment),
		FollowUp:    b.FollowUp,
	})
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "invalid_appointment_id")
	if !ok {
		return
	}

	appt, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) listByProfessional(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "invalid_professional_id")
	if !ok {
		return
	}

	day := time.Now().In(h.loc)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	appts, err := h.svc.ListByProfessionalDay(r.Context(), actor, id, day)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		resp = append(resp, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "invalid_appointment_id")
	if !ok {
		return
	}

	var req appointment.RescheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "start is required")
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), actor, id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "invalid_appointment_id")
	if !ok {
		return
	}

	var req StatusChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to := scheduling.AppointmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
		return
	}

	appt, err := h.svc.Transition(r.Context(), actor, id, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) followUp(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "invalid_patient_id")
	if !ok {
		return
	}

	s, err := h.svc.FollowUp(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "invalid_appointment_id")
	if !ok {
		return
	}

	events, err := h.svc.Events(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []appointment.EventLog{}
	}

	writeJSON(w, http.StatusOK, events)
}

// writeServiceError maps service errors to HTTP responses.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *appointment.RejectedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, RejectionResponse{Accepted: false, Violations: rejected.Violations})
	case errors.Is(err, appointment.ErrConflictAtCommit):
		writeError(w, http.StatusConflict, "CONFLICT_AT_COMMIT", "another booking took this slot, validate again and retry")
	case errors.Is(err, appointment.ErrResourceBusy):
		writeError(w, http.StatusConflict, "resource_busy", err.Error())
	case errors.Is(err, appointment.ErrStatusChanged):
		writeError(w, http.StatusConflict, "status_changed", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "not_reschedulable", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrReferenceNotFound):
		writeError(w, http.StatusNotFound, "reference_not_found", err.Error())
	case errors.Is(err, appointment.ErrStepNotLinkable):
		writeError(w, http.StatusUnprocessableEntity, "step_not_linkable", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrOverrideNotAllowed):
		writeError(w, http.StatusForbidden, "override_not_allowed", err.Error())
	case errors.Is(err, scheduling.ErrCollaborator):
		h.log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("collaborator failure")
		writeError(w, http.StatusServiceUnavailable, "collaborator_unavailable", "a dependency is unavailable, retry later")
	default:
		h.log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request, code string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, code, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
