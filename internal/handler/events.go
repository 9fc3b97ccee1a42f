package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/reminder"
	"github.com/segyhp/loan-tracker/internal/service"
	"github.com/segyhp/loan-tracker/pkg/response"
)

// Snapshot is the payload of each server-sent "snapshot" event.
type Snapshot struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Summary     domain.Summary        `json:"summary"`
	Loans       []domain.LoanResponse `json:"loans"`
	Reminders   reminder.List         `json:"reminders"`
}

func (h *LoanHandler) snapshot(ledger *service.Ledger, r *http.Request) (Snapshot, error) {
	loc := h.service.Location()
	if tz := r.URL.Query().Get("tz"); tz != "" {
		if zone, err := time.LoadLocation(tz); err == nil {
			loc = zone
		}
	}

	now := h.service.Now()
	list, err := ledger.RemindersIn(now, loc)
	if err != nil {
		return Snapshot{}, err
	}

	loans := ledger.Loans()
	out := make([]domain.LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.Response())
	}

	return Snapshot{
		GeneratedAt: now.UTC(),
		Summary:     ledger.Summary(),
		Loans:       out,
		Reminders:   list,
	}, nil
}

// Events handles GET /api/v1/events. It streams the user's snapshot as
// server-sent events: once on connect and again after every change the store
// reports.
func (h *LoanHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.changes == nil {
		response.Error(w, http.StatusNotImplemented, "Live updates are not supported by the configured store", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming unsupported", nil)
		return
	}

	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	// The stream outlives the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug().Err(err).Msg("could not clear write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(l *service.Ledger) {
		snap, err := h.snapshot(l, r)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", l.UserID()).Msg("failed to build snapshot")
			return
		}
		data, err := json.Marshal(snap)
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to encode snapshot")
			return
		}
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
		flusher.Flush()
	}

	err := ledger.Watch(r.Context(), h.changes, send)
	if err != nil && r.Context().Err() == nil {
		h.logger.Warn().Err(err).Str("user_id", ledger.UserID()).Msg("event stream ended")
	}
}
