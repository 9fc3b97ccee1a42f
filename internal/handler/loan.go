package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/export"
	"github.com/segyhp/loan-tracker/internal/reminder"
	"github.com/segyhp/loan-tracker/internal/repository"
	"github.com/segyhp/loan-tracker/internal/service"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
	"github.com/segyhp/loan-tracker/pkg/response"
)

type LoanHandler struct {
	service *service.LoanService
	changes repository.ChangeSource
	logger  zerolog.Logger
}

// NewLoanHandler wires the loan routes. changes may be nil when the store
// cannot push updates, in which case /events is unavailable.
func NewLoanHandler(service *service.LoanService, changes repository.ChangeSource, logger zerolog.Logger) *LoanHandler {
	return &LoanHandler{
		service: service,
		changes: changes,
		logger:  logger.With().Str("component", "loan_handler").Logger(),
	}
}

type RemindersResponse struct {
	Timezone  string        `json:"timezone"`
	Overdue   int           `json:"overdue"`
	Reminders reminder.List `json:"reminders"`
}

type DeleteLoanResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

func (h *LoanHandler) ledger(w http.ResponseWriter, r *http.Request) (*service.Ledger, bool) {
	ledger, err := h.service.Ledger(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	return ledger, true
}

func loanIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["loanId"]
	id, err := uuid.Parse(raw)
	if err != nil {
		response.FromError(w, customError.WrapValidation(fmt.Sprintf("invalid loan id %q", raw)))
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.FromError(w, customError.WrapValidation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// ListLoans handles GET /api/v1/loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	loans := ledger.Loans()
	out := make([]domain.LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.Response())
	}
	response.Success(w, out)
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	loan, err := ledger.CreateLoan(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, loan.Response())
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	loan, err := ledger.Loan(id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan.Response())
}

// DeleteLoan handles DELETE /api/v1/loans/{loanId}
func (h *LoanHandler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	if err := ledger.DeleteLoan(r.Context(), id); err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, DeleteLoanResponse{ID: id, Deleted: true})
}

// ListPayments handles GET /api/v1/loans/{loanId}/payments
func (h *LoanHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	payments, err := ledger.Payments(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payments)
}

// ApplyLoanPayment handles POST /api/v1/loans/{loanId}/payments
func (h *LoanHandler) ApplyLoanPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}

	var req domain.ApplyPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.LoanID = id

	h.applyPayment(w, r, req)
}

// ApplyPayment handles POST /api/v1/payments with loan_id in the body
func (h *LoanHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.ApplyPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.applyPayment(w, r, req)
}

func (h *LoanHandler) applyPayment(w http.ResponseWriter, r *http.Request, req domain.ApplyPaymentRequest) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	loan, payment, err := ledger.ApplyPayment(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, domain.ApplyPaymentResponse{Loan: loan.Response(), Payment: payment})
}

// Dashboard handles GET /api/v1/dashboard
func (h *LoanHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	response.Success(w, ledger.Summary())
}

// Reminders handles GET /api/v1/reminders?tz=Area/City
func (h *LoanHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.location(w, r)
	if !ok {
		return
	}
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	list, err := ledger.RemindersIn(h.service.Now(), loc)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, RemindersResponse{
		Timezone:  loc.String(),
		Overdue:   list.Overdue(),
		Reminders: list,
	})
}

func (h *LoanHandler) location(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return h.service.Location(), true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		response.FromError(w, customError.WrapValidation(fmt.Sprintf("unknown timezone %q", tz)))
		return nil, false
	}
	return loc, true
}

// Export handles GET /api/v1/export/excel?format=xlsx|csv
func (h *LoanHandler) Export(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "xlsx":
		contentType = export.ContentTypeXLSX
		err = export.WriteXLSX(&buf, ledger.Loans(), ledger.Summary())
	case "csv":
		contentType = export.ContentTypeCSV
		err = export.WriteCSV(&buf, ledger.Loans())
	default:
		response.FromError(w, customError.WrapValidation(fmt.Sprintf("unsupported export format %q", format)))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("format", format).Msg("failed to render export")
		response.InternalServerError(w, "Failed to generate report", err)
		return
	}

	name := export.FileName(h.service.Now(), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn().Err(err).Msg("export download interrupted")
	}
}
