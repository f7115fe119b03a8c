package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"
	tlog "tally/internal/log"
)

const maxSummaryLimit = 100

type (
	healthResponse struct {
		Status  string       `json:"status"`
		Metrics *metricsJSON `json:"metrics,omitempty"`
	}

	metricsJSON struct {
		Requests           int64 `json:"requests"`
		FailedRequests     int64 `json:"failed_requests"`
		LastResponseMicros int64 `json:"last_response_us"`
		RateLimitHits      int64 `json:"rate_limit_hits"`
		RateLimitClients   int64 `json:"rate_limit_clients"`
		SuspiciousRequests int64 `json:"suspicious_requests"`
		InvalidIPAttempts  int64 `json:"invalid_ip_attempts"`
	}
)

// handleHealth reports liveness together with the middleware counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	traced := s.tracer.GetMetrics()
	limited := s.limiter.GetMetrics()
	detected := s.detector.GetMetrics()
	NewJSONResponse().Body(healthResponse{
		Status: "ok",
		Metrics: &metricsJSON{
			Requests:           traced.TotalRequests,
			FailedRequests:     traced.FailedRequests,
			LastResponseMicros: traced.LastResponseMicro,
			RateLimitHits:      limited.TotalHits,
			RateLimitClients:   limited.ClientCount,
			SuspiciousRequests: detected.SuspiciousRequests,
			InvalidIPAttempts:  detected.InvalidIPAttempts,
		},
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			tlog.FromContext(ctx).ErrorContext(ctx, "Readiness check failed", tlog.FieldError, err)
			ServiceUnavailableError("store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(healthResponse{Status: "ready"}).Write(w)
}

type (
	windowJSON struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}

	categoryJSON struct {
		Label    string `json:"label"`
		Subtotal string `json:"subtotal"`
		Quantity string `json:"quantity,omitempty"`
		Count    int    `json:"count"`
	}

	personJSON struct {
		Actor string `json:"actor"`
		Total string `json:"total"`
	}

	entryJSON struct {
		Index     int       `json:"index"`
		ID        int64     `json:"id"`
		Amount    string    `json:"amount"`
		Label     string    `json:"label,omitempty"`
		Quantity  string    `json:"quantity,omitempty"`
		Actor     string    `json:"actor"`
		CreatedAt time.Time `json:"created_at"`
		Running   string    `json:"running"`
	}

	summaryResponse struct {
		ChatID     int64          `json:"chat_id"`
		Scope      string         `json:"scope"`
		Window     *windowJSON    `json:"window,omitempty"`
		Currency   string         `json:"currency,omitempty"`
		Total      string         `json:"total"`
		Count      int            `json:"count"`
		Categories []categoryJSON `json:"categories"`
		People     []personJSON   `json:"people"`
		Elided     int            `json:"elided"`
		Entries    []entryJSON    `json:"entries"`
	}
)

// handleSummary serves GET /api/chats/{chatID}/summary?scope=round|all&limit=n.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chatID, err := strconv.ParseInt(r.PathValue("chatID"), 10, 64)
	if err != nil || chatID == 0 {
		BadRequestError("invalid chat id").Write(w)
		return
	}

	q := r.URL.Query()
	scope := q.Get("scope")
	if scope == "" {
		scope = core.ScopeRound
	}
	if scope != core.ScopeRound && scope != core.ScopeAll {
		BadRequestError("scope must be round or all").Write(w)
		return
	}
	limit := s.reportLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxSummaryLimit {
			BadRequestError("limit must be between 0 and 100").Write(w)
			return
		}
		limit = n
	}

	cfg, err := s.settings.Peek(ctx, chatID)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	resp := summaryResponse{ChatID: chatID, Scope: scope, Currency: cfg.Currency}
	var window *core.Window
	if scope == core.ScopeRound {
		cw := core.CurrentWindow(cfg, s.now())
		window = &cw
		resp.Window = &windowJSON{Start: cw.Start, End: cw.End}
	}

	txs, err := s.journal.List(ctx, chatID, window)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	sum := core.Summarize(txs)
	resp.Total = sum.Total.String()
	resp.Count = sum.Count
	resp.Categories = make([]categoryJSON, 0, len(sum.ByCategory))
	for _, c := range sum.Categories() {
		cj := categoryJSON{Label: c.Label, Subtotal: c.Subtotal.String(), Count: c.Count}
		if !c.Quantity.IsZero() {
			cj.Quantity = c.Quantity.String()
		}
		resp.Categories = append(resp.Categories, cj)
	}
	resp.People = make([]personJSON, 0, len(sum.ByActor))
	for _, a := range sum.Ranking() {
		resp.People = append(resp.People, personJSON{Actor: a.Actor, Total: a.Total.String()})
	}

	page := core.Display(txs, limit)
	resp.Elided = page.Elided
	resp.Entries = make([]entryJSON, 0, len(page.Entries))
	if limit == 0 {
		// limit=0 asks for totals only.
		resp.Elided = page.Total
	} else {
		for _, e := range page.Entries {
			resp.Entries = append(resp.Entries, toEntryJSON(e))
		}
	}

	NewJSONResponse().Body(resp).Write(w)
}

func toEntryJSON(e core.Entry) entryJSON {
	tx := e.Transaction
	out := entryJSON{
		Index:     e.Index,
		ID:        tx.ID,
		Amount:    tx.Amount.String(),
		Label:     tx.Label,
		Actor:     tx.Actor,
		CreatedAt: tx.CreatedAt.UTC(),
		Running:   e.Running.String(),
	}
	if tx.Quantity != nil {
		out.Quantity = tx.Quantity.String()
	}
	return out
}

func (s *Server) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := tlog.FromContext(ctx)
	switch {
	case errors.Is(err, core.ErrValidation):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrStorageUnavailable):
		logger.ErrorContext(ctx, "Store unavailable", tlog.FieldError, err)
		ServiceUnavailableError("store unavailable").Write(w)
	default:
		logger.ErrorContext(ctx, "Request failed", tlog.FieldError, err)
		InternalServerError("internal error").Write(w)
	}
}
