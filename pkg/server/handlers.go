package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/policy/manager"
	"skuldbot/compliance/pkg/policy/service"
	"skuldbot/compliance/pkg/ratelimit"
	"skuldbot/compliance/pkg/telemetry/logging"
)

// evaluationRequest is the body of POST /v1/evaluations.
type evaluationRequest struct {
	TenantID string `json:"tenantId" validate:"required_without=Packs,max=128"`
	BotID    string `json:"botId" validate:"max=128"`

	// Packs are "id@version" pins.
	Packs []string `json:"packs" validate:"omitempty,max=32,dive,required"`

	Nodes []nodeRequest `json:"nodes" validate:"max=10000,dive"`
	Now   *time.Time    `json:"now"`
	Phase string        `json:"phase" validate:"omitempty,oneof=compile runtime"`
}

type nodeRequest struct {
	NodeID              string                   `json:"nodeId" validate:"required"`
	NodeCategory        string                   `json:"nodeCategory"`
	NodeType            string                   `json:"nodeType"`
	DataClassifications []lattice.Classification `json:"dataClassifications"`
	Egress              lattice.EgressScope      `json:"egress"`
	Amount              *decimal.Decimal         `json:"amountOrThreshold"`
	RetentionDays       *int                     `json:"retentionDays" validate:"omitempty,gte=0"`
}

func (req *evaluationRequest) toService() (service.Request, error) {
	out := service.Request{
		TenantID: req.TenantID,
		BotID:    req.BotID,
		Phase:    engine.Phase(req.Phase),
		Nodes:    make([]engine.NodeContext, len(req.Nodes)),
	}
	if req.Now != nil {
		out.Now = *req.Now
	}
	for _, s := range req.Packs {
		ref, err := pack.ParseRef(s)
		if err != nil {
			return service.Request{}, err
		}
		out.Packs = append(out.Packs, ref)
	}
	for i, n := range req.Nodes {
		out.Nodes[i] = engine.NodeContext{
			NodeID:              n.NodeID,
			NodeCategory:        n.NodeCategory,
			NodeType:            n.NodeType,
			DataClassifications: n.DataClassifications,
			Egress:              n.Egress,
			Amount:              n.Amount,
			RetentionDays:       n.RetentionDays,
		}
	}
	return out, nil
}

type evaluationResponse struct {
	ID         string                      `json:"id"`
	EvidenceID string                      `json:"evidenceId,omitempty"`
	Phase      engine.Phase                `json:"phase"`
	Passed     bool                        `json:"passed"`
	Result     *engine.Result              `json:"result"`
	Compliance *evidence.ComplianceSection `json:"compliance"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluationRequest
	if err := decodeJSON(r, &body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if err := s.validate.Struct(&body); err != nil {
		writeValidationError(w, err)
		return
	}

	req, err := body.toService()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	decision := s.limiter.Allow(limitKey(req.TenantID))
	if !decision.Allowed {
		writeRateLimited(w, decision)
		return
	}
	defer decision.Release()

	ev, err := s.deps.Evaluator.Evaluate(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		if status >= 500 {
			logging.Contextual(r.Context(), s.logger).Error("evaluation failed", "error", err)
		}
		writeError(w, status, code, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, evaluationResponse{
		ID:         ev.ID,
		EvidenceID: ev.EvidenceID(),
		Phase:      ev.Phase,
		Passed:     ev.Result.Passed,
		Result:     ev.Result,
		Compliance: ev.Section,
	})
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	packs := s.deps.Packs.List(r.URL.Query().Get("tenant"))
	writeJSON(w, http.StatusOK, map[string]any{
		"packs": packs,
		"count": len(packs),
	})
}

func (s *Server) handleGetPack(w http.ResponseWriter, r *http.Request) {
	ref := pack.Ref{ID: chi.URLParam(r, "id"), Version: chi.URLParam(r, "version")}
	p, err := s.deps.Packs.Resolve(r.URL.Query().Get("tenant"), ref)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleQueryEvidence(w http.ResponseWriter, r *http.Request) {
	q, err := parseEvidenceQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error(), nil)
		return
	}
	limits := s.deps.QueryLimits
	limits.ApplyDefaults(q)
	if err := limits.Validate(q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error(), nil)
		return
	}

	records, err := s.deps.Evidence.Query(r.Context(), q)
	if err != nil {
		logging.Contextual(r.Context(), s.logger).Error("evidence query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage", "evidence query failed", nil)
		return
	}
	total, err := s.deps.Evidence.Count(r.Context(), q)
	if err != nil {
		logging.Contextual(r.Context(), s.logger).Error("evidence count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage", "evidence query failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"limit":   q.Limit,
		"offset":  q.Offset,
	})
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Evidence.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
			return
		}
		logging.Contextual(r.Context(), s.logger).Error("evidence lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage", "evidence lookup failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func parseEvidenceQuery(r *http.Request) (*evidence.Query, error) {
	v := r.URL.Query()
	q := &evidence.Query{
		TenantID:     v.Get("tenant"),
		BotID:        v.Get("bot"),
		EvaluationID: v.Get("evaluation"),
		Phase:        v.Get("phase"),
		PackID:       v.Get("pack"),
		SortOrder:    v.Get("order"),
	}

	var err error
	if s := v.Get("passed"); s != "" {
		passed, perr := strconv.ParseBool(s)
		if perr != nil {
			return nil, fmt.Errorf("passed: %w", perr)
		}
		q.Passed = &passed
	}
	if q.StartTime, err = parseTime(v.Get("start")); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if q.EndTime, err = parseTime(v.Get("end")); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if q.Limit, err = parseInt(v.Get("limit")); err != nil {
		return nil, fmt.Errorf("limit: %w", err)
	}
	if q.Offset, err = parseInt(v.Get("offset")); err != nil {
		return nil, fmt.Errorf("offset: %w", err)
	}
	return q, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// pinnedKey is the rate limit key shared by requests without a tenant.
const pinnedKey = "_pinned"

func limitKey(tenantID string) string {
	if tenantID == "" {
		return pinnedKey
	}
	return tenantID
}

func writeRateLimited(w http.ResponseWriter, d ratelimit.Decision) {
	retry := int(math.Ceil(d.RetryAfter.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(max(1, retry)))
	msg := "evaluation rate limit exceeded"
	if d.Reason == ratelimit.ReasonConcurrent {
		msg = "too many evaluations in flight"
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", msg, nil)
}

// statusFor maps evaluation and registry errors to an HTTP status and a
// stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, manager.ErrNoPacks), errors.Is(err, pack.ErrInvalidRef):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, engine.ErrInvalidContext):
		return http.StatusUnprocessableEntity, "invalid_context"
	case errors.Is(err, manager.ErrPackNotFound):
		return http.StatusNotFound, "pack_not_found"
	case errors.Is(err, manager.ErrUnknownTenant):
		return http.StatusNotFound, "unknown_tenant"
	case errors.Is(err, engine.ErrPoolClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without":
			fields[fe.Namespace()] = fmt.Sprintf("%s is required", fe.Field())
		case "oneof":
			fields[fe.Namespace()] = fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		case "max", "gte":
			fields[fe.Namespace()] = fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param())
		default:
			fields[fe.Namespace()] = fmt.Sprintf("%s validation failed on '%s'", fe.Field(), fe.Tag())
		}
	}
	writeError(w, http.StatusBadRequest, "validation_failed", "request validation failed", fields)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code, Fields: fields})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
