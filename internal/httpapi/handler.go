// Package httpapi implements the HTTP handlers of the pipeline service.
//
// All routes expect the caller identity forwarded by the Gateway in the
// x-user-id, x-user-role, x-user-team and x-user-system headers.
//
// Routes:
//
//	POST   /applicant                                  → register the caller as applicant
//	GET    /applications?team=                         → list a team's applications (staff)
//	POST   /applications                               → create an application
//	GET    /applications/{id}                          → phase-projected application view
//	POST   /applications/{id}/submit                   → IN_PROGRESS → SUBMITTED
//	POST   /applications/{id}/status                   → generic status dispatcher
//	POST   /applications/{id}/reject                   → reject from systems
//	POST   /applications/{id}/interview                → pick the single interview track
//	POST   /applications/{id}/interview/offers         → extend interview offers (staff)
//	GET    /applications/{id}/interview/slots?system=  → free slots for one offer
//	POST   /applications/{id}/interview/schedule       → book a slot
//	DELETE /applications/{id}/interview/schedule       → cancel a booking
//	PATCH  /applications/{id}/interview/{system}       → record the interview outcome
//	POST   /applications/{id}/trial                    → record trial offers
//	POST   /applications/{id}/trial/respond            → answer a trial offer
//	GET    /phase                                      → current recruiting phase
//	PUT    /phase                                      → set the recruiting phase (admin)
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	svc     *pipeline.Service
	booking *booking.Coordinator
	log     *zap.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc *pipeline.Service, coord *booking.Coordinator, log *zap.Logger) *Handler {
	return &Handler{svc: svc, booking: coord, log: log}
}

// RegisterRoutes mounts all pipeline routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/applicant", h.withActor(h.handleApplicant))
	mux.HandleFunc("/applications", h.withActor(h.handleApplications))
	mux.HandleFunc("/applications/", h.withActor(h.handleApplicationAction))
	mux.HandleFunc("/phase", h.withActor(h.handlePhase))
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor pipeline.Actor)

// withActor resolves the forwarded identity or answers 401.
func (h *Handler) withActor(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromHeaders(r.Header)
		if err != nil {
			jsonError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r, actor)
	}
}

func actorFromHeaders(hdr http.Header) (pipeline.Actor, error) {
	userID := hdr.Get("x-user-id")
	if userID == "" {
		return pipeline.Actor{}, errors.New("missing x-user-id header")
	}
	role := pipeline.RoleApplicant
	if raw := hdr.Get("x-user-role"); raw != "" {
		var err error
		if role, err = pipeline.ParseRole(raw); err != nil {
			return pipeline.Actor{}, err
		}
	}
	return pipeline.Actor{
		UserID: userID,
		Role:   role,
		Team:   hdr.Get("x-user-team"),
		System: hdr.Get("x-user-system"),
	}, nil
}

// ─── Route dispatch ──────────────────────────────────────────────────────────

// handleApplicant handles POST /applicant
func (h *Handler) handleApplicant(w http.ResponseWriter, r *http.Request, actor pipeline.Actor) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	a, err := h.svc.RegisterApplicant(r.Context(), actor, body.Name, body.Email)
	if err != nil {
		h.fail(w, "registerApplicant", err)
		return
	}
	jsonOK(w, a)
}

// handleApplications handles GET and POST /applications
func (h *Handler) handleApplications(w http.ResponseWriter, r *http.Request, actor pipeline.Actor) {
	switch r.Method {
	case http.MethodGet:
		views, err := h.svc.ListApplications(r.Context(), actor, r.URL.Query().Get("team"))
		if err != nil {
			h.fail(w, "listApplications", err)
			return
		}
		jsonOK(w, views)
	case http.MethodPost:
		var body struct {
			Team             string   `json:"team"`
			PreferredSystems []string `json:"preferredSystems"`
		}
		if !decode(w, r, &body) {
			return
		}
		app, err := h.svc.CreateApplication(r.Context(), actor, body.Team, body.PreferredSystems)
		if err != nil {
			h.fail(w, "createApplication", err)
			return
		}
		h.respondView(w, r, actor, app.ID)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleApplicationAction handles everything under /applications/{id}
func (h *Handler) handleApplicationAction(w http.ResponseWriter, r *http.Request, actor pipeline.Actor) {
	// Parse /applications/{id}[/{action}[/{sub}]]
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || len(parts) > 4 || parts[1] == "" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	appID := parts[1]

	route := r.Method + " " + strings.Join(parts[2:], "/")
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.respondView(w, r, actor, appID)
	case route == "POST submit":
		h.submit(w, r, actor, appID)
	case route == "POST status":
		h.updateStatus(w, r, actor, appID)
	case route == "POST reject":
		h.reject(w, r, actor, appID)
	case route == "POST interview", route == "POST interview/select":
		h.selectSystem(w, r, actor, appID)
	case route == "POST interview/offers":
		h.extendInterviews(w, r, actor, appID)
	case route == "GET interview/slots":
		h.availableSlots(w, r, actor, appID)
	case route == "POST interview/schedule":
		h.bookSlot(w, r, actor, appID)
	case route == "DELETE interview/schedule":
		h.cancelBooking(w, r, actor, appID)
	case len(parts) == 4 && parts[2] == "interview" && r.Method == http.MethodPatch:
		h.recordOutcome(w, r, actor, appID, parts[3])
	case route == "POST trial":
		h.recordTrial(w, r, actor, appID)
	case route == "POST trial/respond":
		h.respondTrial(w, r, actor, appID)
	default:
		jsonError(w, fmt.Sprintf("unknown route %s %s", r.Method, r.URL.Path), http.StatusNotFound)
	}
}

// handlePhase handles GET and PUT /phase
func (h *Handler) handlePhase(w http.ResponseWriter, r *http.Request, actor pipeline.Actor) {
	switch r.Method {
	case http.MethodGet:
		p, err := h.svc.Phase(r.Context())
		if err != nil {
			h.fail(w, "getPhase", err)
			return
		}
		jsonOK(w, map[string]string{"phase": string(p)})
	case http.MethodPut:
		var body struct {
			Phase string `json:"phase"`
			Force bool   `json:"force"`
		}
		if !decode(w, r, &body) {
			return
		}
		p, err := h.svc.SetPhase(r.Context(), actor, pipeline.Phase(body.Phase), body.Force)
		if err != nil {
			h.fail(w, "setPhase", err)
			return
		}
		jsonOK(w, map[string]string{"phase": string(p)})
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ─── Individual handlers ─────────────────────────────────────────────────────

type systemsBody struct {
	Systems []string `json:"systems"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	if _, err := h.svc.SubmitApplication(r.Context(), actor, appID); err != nil {
		h.fail(w, "submitApplication", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body pipeline.StatusUpdate
	if !decode(w, r, &body) {
		return
	}
	res, err := h.svc.UpdateStatus(r.Context(), actor, appID, body)
	if err != nil {
		h.fail(w, "updateStatus", err)
		return
	}
	h.respondReject(w, r, actor, res)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body systemsBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.svc.RejectFromSystems(r.Context(), actor, appID, body.Systems)
	if err != nil {
		h.fail(w, "rejectFromSystems", err)
		return
	}
	h.respondReject(w, r, actor, res)
}

func (h *Handler) extendInterviews(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body systemsBody
	if !decode(w, r, &body) {
		return
	}
	if _, err := h.svc.ExtendInterviewOffers(r.Context(), actor, appID, body.Systems); err != nil {
		h.fail(w, "extendInterviewOffers", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) recordTrial(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body systemsBody
	if !decode(w, r, &body) {
		return
	}
	if _, err := h.svc.RecordTrialOffer(r.Context(), actor, appID, body.Systems); err != nil {
		h.fail(w, "recordTrialOffer", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) respondTrial(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body struct {
		System   string `json:"system"`
		Accepted *bool  `json:"accepted"`
		Reason   string `json:"reason"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.System == "" || body.Accepted == nil {
		jsonError(w, "body must contain system and accepted", http.StatusBadRequest)
		return
	}
	if _, err := h.svc.RespondToTrialOffer(r.Context(), actor, appID, body.System, *body.Accepted, body.Reason); err != nil {
		h.fail(w, "respondToTrialOffer", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) selectSystem(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body struct {
		System string `json:"system"`
	}
	if !decode(w, r, &body) {
		return
	}
	if _, err := h.booking.SelectSystem(r.Context(), actor, appID, body.System); err != nil {
		h.fail(w, "selectSystem", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) availableSlots(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	system := r.URL.Query().Get("system")
	if system == "" {
		jsonError(w, "system query parameter is required", http.StatusBadRequest)
		return
	}
	av, err := h.booking.AvailableSlots(r.Context(), actor, appID, system)
	if err != nil {
		h.fail(w, "availableSlots", err)
		return
	}
	jsonOK(w, av)
}

func (h *Handler) bookSlot(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	// start/end are accepted as aliases of slotStart/slotEnd.
	var body struct {
		System    string    `json:"system"`
		SlotStart time.Time `json:"slotStart"`
		SlotEnd   time.Time `json:"slotEnd"`
		Start     time.Time `json:"start"`
		End       time.Time `json:"end"`
	}
	if !decode(w, r, &body) {
		return
	}
	slot := slots.Interval{Start: body.SlotStart, End: body.SlotEnd}
	if slot.Start.IsZero() {
		slot.Start = body.Start
	}
	if slot.End.IsZero() {
		slot.End = body.End
	}
	if body.System == "" || slot.Start.IsZero() || slot.End.IsZero() {
		jsonError(w, "body must contain system, slotStart and slotEnd", http.StatusBadRequest)
		return
	}
	if _, err := h.booking.BookSlot(r.Context(), actor, appID, body.System, slot); err != nil {
		h.fail(w, "bookSlot", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	var body struct {
		System string `json:"system"`
		Reason string `json:"reason"`
	}
	if !decode(w, r, &body) {
		return
	}
	if _, err := h.booking.CancelBooking(r.Context(), actor, appID, body.System, body.Reason); err != nil {
		h.fail(w, "cancelBooking", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

func (h *Handler) recordOutcome(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID, system string) {
	var body struct {
		Status       string `json:"status"`
		CancelReason string `json:"cancelReason"`
		Reason       string `json:"reason"`
	}
	if !decode(w, r, &body) {
		return
	}
	reason := body.CancelReason
	if reason == "" {
		reason = body.Reason
	}
	if _, err := h.booking.RecordOutcome(r.Context(), actor, appID, system, body.Status, reason); err != nil {
		h.fail(w, "recordOutcome", err)
		return
	}
	h.respondView(w, r, actor, appID)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// respondView answers with the application as the caller may see it, so a
// mutation response never shows more than a subsequent GET would.
func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, appID string) {
	v, err := h.svc.GetApplication(r.Context(), actor, appID)
	if err != nil {
		h.fail(w, "getApplication", err)
		return
	}
	jsonOK(w, v)
}

func (h *Handler) respondReject(w http.ResponseWriter, r *http.Request, actor pipeline.Actor, res *pipeline.RejectResult) {
	v, err := h.svc.GetApplication(r.Context(), actor, res.Application.ID)
	if err != nil {
		h.fail(w, "getApplication", err)
		return
	}
	jsonOK(w, map[string]any{"application": v, "fullyRejected": res.FullyRejected})
}

// fail maps domain errors to status codes. Anything unexpected is logged
// and answered with a generic 500.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var ve *pipeline.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrPermissionDenied):
		jsonError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, pipeline.ErrConflict):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pipeline.ErrMisconfigured):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case booking.IsCalendarError(err):
		h.log.Error(op+" calendar error", zap.Error(err))
		jsonError(w, "calendar unavailable, try again", http.StatusBadGateway)
	default:
		h.log.Error(op+" failed", zap.Error(err))
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
