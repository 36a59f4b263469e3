package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gatewarden/internal/access"
	"gatewarden/internal/api"
	"gatewarden/internal/journal"
	"gatewarden/internal/logging"
	"gatewarden/internal/plate"
	"gatewarden/internal/services"
)

const (
	operatorHeader  = "X-Operator"
	defaultOperator = "api"
	defaultLogLimit = 100
	maxBodyBytes    = 64 << 10
)

func (s *apiServer) handlePending(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromPendingList(s.daemon.Gate().Pending()))
}

func (s *apiServer) handleBarrier(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBarrier(s.daemon.Gate().Barrier()))
}

// handleOccupancy serves the full occupancy map, or a single plate's status
// when ?plate= is given. Unknown plates report OUTSIDE.
func (s *apiServer) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	g := s.daemon.Gate()
	raw := strings.TrimSpace(r.URL.Query().Get("plate"))
	if raw == "" {
		s.writeJSON(w, http.StatusOK, api.FromOccupancy(g.Occupancy()))
		return
	}
	p := plate.Normalize(raw)
	if p == "" {
		s.writeError(w, r, http.StatusBadRequest, "plate is required", services.KindValidation)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOccupancy(map[string]access.Occupancy{p: g.OccupancyOf(p)}))
}

// handleAccessLogs lists access log entries, most recent first. Filters are
// served from the journal so they cover history beyond the in-memory log.
func (s *apiServer) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	query := r.URL.Query()
	limit := defaultLogLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer", services.KindValidation)
			return
		}
		limit = parsed
	}
	filter := journal.Filter{
		Plate:  plate.Normalize(query.Get("plate")),
		Action: access.Action(strings.ToUpper(strings.TrimSpace(query.Get("action")))),
		Limit:  limit,
	}
	if filter.Plate == "" && filter.Action == "" {
		s.writeJSON(w, http.StatusOK, api.FromLogEntries(s.daemon.Gate().Logs(limit)))
		return
	}
	entries, err := s.daemon.journal.Recent(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromLogEntries(entries))
}

// handleOpen approves ?plate= when given, otherwise forces the barrier open.
func (s *apiServer) handleOpen(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	operator := operatorFor(r, "")
	if raw := strings.TrimSpace(r.URL.Query().Get("plate")); raw != "" {
		s.resolve(w, r, raw, access.DecisionApprove, operator)
		return
	}
	ctx := services.WithOperator(r.Context(), operator)
	status, err := s.daemon.Gate().ForceOpen(ctx, operator)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BarrierActionResponse{Barrier: api.FromBarrier(status)})
}

func (s *apiServer) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	operator := operatorFor(r, "")
	ctx := services.WithOperator(r.Context(), operator)
	status, err := s.daemon.Gate().ForceClose(ctx, operator)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BarrierActionResponse{Barrier: api.FromBarrier(status)})
}

func (s *apiServer) handleReject(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("plate"))
	if raw == "" {
		s.writeError(w, r, http.StatusBadRequest, "plate is required", services.KindValidation)
		return
	}
	s.resolve(w, r, raw, access.DecisionReject, operatorFor(r, ""))
}

func (s *apiServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	var req api.ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	decision, err := access.ParseDecision(req.Decision)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.resolve(w, r, req.Plate, decision, operatorFor(r, req.Operator))
}

func (s *apiServer) resolve(w http.ResponseWriter, r *http.Request, raw string, decision access.Decision, operator string) {
	ctx := services.WithOperator(services.WithPlate(r.Context(), plate.Normalize(raw)), operator)
	entry, err := s.daemon.Gate().Resolve(ctx, raw, decision, operator)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	logging.WithContext(ctx, s.log()).Info("pending approval resolved",
		logging.String(logging.FieldDecision, string(decision)),
		logging.String("action", string(entry.Action)),
		logging.String(logging.FieldEventType, "pending_resolved"),
	)
	s.writeJSON(w, http.StatusOK, api.ResolveResponse{
		Entry:   api.FromLogEntry(entry),
		Barrier: api.FromBarrier(s.daemon.Gate().Barrier()),
	})
}

// handleDetection accepts a reading pushed by an external detector.
func (s *apiServer) handleDetection(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	var req api.DetectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	var direction access.Direction
	if strings.TrimSpace(req.Direction) != "" {
		parsed, err := access.ParseDirection(req.Direction)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		direction = parsed
	}
	reading := access.Reading{
		CameraID: strings.TrimSpace(req.CameraID),
		Plate:    req.Plate,
		At:       s.daemon.now(),
	}
	ctx := services.WithCamera(r.Context(), reading.CameraID)
	result, err := s.daemon.Gate().Ingest(ctx, reading, direction)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromIngest(result))
}

// handleCredential approves the pending plate registered to a presented credential.
func (s *apiServer) handleCredential(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	var req api.CredentialRequest
	if !s.decode(w, r, &req) {
		return
	}
	entry, err := s.daemon.Gate().ResolveByCredential(r.Context(), req.UserID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ResolveResponse{
		Entry:   api.FromLogEntry(entry),
		Barrier: api.FromBarrier(s.daemon.Gate().Barrier()),
	})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), services.KindValidation)
		return false
	}
	return true
}

// operatorFor picks the acting operator from the body, query or header.
func operatorFor(r *http.Request, fromBody string) string {
	for _, candidate := range []string{fromBody, r.URL.Query().Get("operator"), r.Header.Get(operatorHeader)} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return defaultOperator
}
