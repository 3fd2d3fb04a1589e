/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the ledger, workflow, and aggregation engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Employees:
    GET  /api/employees/{id}/balance        Leave balance
    GET  /api/employees/{id}/transactions   Ledger history
    POST /api/employees/{id}/checkin        Raw clock-in
    POST /api/employees/{id}/checkout       Raw clock-out
    GET  /api/employees/{id}/summary        Monthly summary (?year=&month=)
    GET  /api/employees/{id}/detail         Daily breakdown (?year=&month=)

  Requests (kind in {day_off, remote_work, overtime, late_early, forgot_checkin}):
    POST   /api/requests/{kind}             Create
    GET    /api/requests/{kind}/{id}        Read
    PUT    /api/requests/{kind}/{id}        Edit (REJECTED only)
    DELETE /api/requests/{kind}/{id}        Delete (PENDING only)
    POST   /api/requests/{kind}/{id}/approve
    POST   /api/requests/{kind}/{id}/reject

  Holidays:
    GET    /api/holidays
    POST   /api/holidays
    DELETE /api/holidays/{id}

  Admin:
    POST /api/admin/accrue                  Monthly accrual fan-out
    POST /api/admin/reset-annual            Annual reset fan-out

ERROR HANDLING:
  Domain errors map onto HTTP status codes:
  - 400: validation failures, insufficient balance
  - 403: approver out of scope, self-approval
  - 404: unknown employee/request
  - 409: duplicate request, wrong lifecycle state, refund guard
  - 500: storage failures

SECURITY NOTE:
  No authentication middleware; approver identity comes from the request
  body and is trusted. Session issuance is out of scope here.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/attendance-engine/aggregate"
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/org"
	"github.com/warp/attendance-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HolidayStore is the holiday persistence surface the API needs. Both the
// memory and sqlite stores implement it.
type HolidayStore interface {
	PutHoliday(ctx context.Context, h calendar.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	Holidays(ctx context.Context) ([]calendar.Holiday, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger    *ledger.Service
	Workflow  *workflow.Workflow
	Engine    *aggregate.Engine
	Holidays  HolidayStore
	Directory org.Directory
}

func NewHandler(led *ledger.Service, wf *workflow.Workflow, engine *aggregate.Engine, holidays HolidayStore, directory org.Directory) *Handler {
	return &Handler{
		Ledger:    led,
		Workflow:  wf,
		Engine:    engine,
		Holidays:  holidays,
		Directory: directory,
	}
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetBalance returns the employee's leave balance, seeding it on first
// access.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.Ledger.GetOrCreate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// GetTransactions returns the employee's ledger history, oldest first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	txs, err := h.Ledger.Transactions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CLOCK HANDLERS
// =============================================================================

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Workflow.CheckIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeRecordDTO(rec))
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Workflow.CheckOut(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeRecordDTO(rec))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// CreateRequest creates a request of the kind named in the URL.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := workflow.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	workDate, err := time.Parse(dateLayout, body.WorkDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work_date format (use YYYY-MM-DD)", err)
		return
	}

	req, err := h.dispatchCreate(r.Context(), kind, body, workDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

func (h *Handler) dispatchCreate(ctx context.Context, kind workflow.Kind, body CreateRequestBody, workDate time.Time) (*workflow.Request, error) {
	switch kind {
	case workflow.KindDayOff:
		return h.Workflow.CreateDayOff(ctx, workflow.DayOffInput{
			EmployeeID: body.EmployeeID,
			WorkDate:   workDate,
			Duration:   workflow.DayOffDuration(body.Duration),
			Category:   workflow.LeaveCategory(body.Category),
			Reason:     body.Reason,
		})
	case workflow.KindRemoteWork:
		return h.Workflow.CreateRemoteWork(ctx, workflow.RemoteWorkInput{
			EmployeeID: body.EmployeeID,
			WorkDate:   workDate,
			Reason:     body.Reason,
		})
	case workflow.KindOvertime:
		rate, err := parseRate(body.HourlyRate)
		if err != nil {
			return nil, &workflow.ValidationError{Field: "hourly_rate", Message: "must be a decimal number"}
		}
		return h.Workflow.CreateOvertime(ctx, workflow.OvertimeInput{
			EmployeeID:  body.EmployeeID,
			WorkDate:    workDate,
			StartMinute: body.StartMinute,
			EndMinute:   body.EndMinute,
			HourlyRate:  rate,
		})
	case workflow.KindLateEarly:
		return h.Workflow.CreateLateEarly(ctx, workflow.LateEarlyInput{
			EmployeeID:   body.EmployeeID,
			WorkDate:     workDate,
			Type:         workflow.LateEarlyType(body.Type),
			LateMinutes:  body.LateMinutes,
			EarlyMinutes: body.EarlyMinutes,
			Reason:       body.Reason,
		})
	default:
		return h.Workflow.CreateForgotCheckin(ctx, workflow.ForgotCheckinInput{
			EmployeeID:     body.EmployeeID,
			WorkDate:       workDate,
			CheckinMinute:  body.CheckinMinute,
			CheckoutMinute: body.CheckoutMinute,
			Reason:         body.Reason,
		})
	}
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := workflow.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}
	req, err := h.Workflow.Request(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// UpdateRequest edits a rejected request and returns it to PENDING.
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := workflow.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}
	id := chi.URLParam(r, "id")

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	workDate, err := time.Parse(dateLayout, body.WorkDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work_date format (use YYYY-MM-DD)", err)
		return
	}

	req, err := h.dispatchUpdate(r.Context(), kind, id, body, workDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) dispatchUpdate(ctx context.Context, kind workflow.Kind, id string, body CreateRequestBody, workDate time.Time) (*workflow.Request, error) {
	switch kind {
	case workflow.KindDayOff:
		return h.Workflow.UpdateDayOff(ctx, id, workflow.DayOffInput{
			EmployeeID: body.EmployeeID,
			WorkDate:   workDate,
			Duration:   workflow.DayOffDuration(body.Duration),
			Category:   workflow.LeaveCategory(body.Category),
			Reason:     body.Reason,
		})
	case workflow.KindRemoteWork:
		return h.Workflow.UpdateRemoteWork(ctx, id, workflow.RemoteWorkInput{
			EmployeeID: body.EmployeeID,
			WorkDate:   workDate,
			Reason:     body.Reason,
		})
	case workflow.KindOvertime:
		rate, err := parseRate(body.HourlyRate)
		if err != nil {
			return nil, &workflow.ValidationError{Field: "hourly_rate", Message: "must be a decimal number"}
		}
		return h.Workflow.UpdateOvertime(ctx, id, workflow.OvertimeInput{
			EmployeeID:  body.EmployeeID,
			WorkDate:    workDate,
			StartMinute: body.StartMinute,
			EndMinute:   body.EndMinute,
			HourlyRate:  rate,
		})
	case workflow.KindLateEarly:
		return h.Workflow.UpdateLateEarly(ctx, id, workflow.LateEarlyInput{
			EmployeeID:   body.EmployeeID,
			WorkDate:     workDate,
			Type:         workflow.LateEarlyType(body.Type),
			LateMinutes:  body.LateMinutes,
			EarlyMinutes: body.EarlyMinutes,
			Reason:       body.Reason,
		})
	default:
		return h.Workflow.UpdateForgotCheckin(ctx, id, workflow.ForgotCheckinInput{
			EmployeeID:     body.EmployeeID,
			WorkDate:       workDate,
			CheckinMinute:  body.CheckinMinute,
			CheckoutMinute: body.CheckoutMinute,
			Reason:         body.Reason,
		})
	}
}

// DeleteRequest soft-deletes a pending request.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := workflow.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}
	if err := h.Workflow.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest approves a pending request.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := workflow.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}
	var body DecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Workflow.Approve(r.Context(), kind, chi.URLParam(r, "id"), body.ApproverID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// RejectRequest rejects a pending or approved request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := workflow.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}
	var body DecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Workflow.Reject(r.Context(), kind, chi.URLParam(r, "id"), body.ApproverID, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// AGGREGATION HANDLERS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}
	s, err := h.Engine.Summarize(r.Context(), id, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

func (h *Handler) GetDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}
	d, err := h.Engine.Detail(r.Context(), id, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTO(d))
}

func parseYearMonth(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1970 {
		writeError(w, http.StatusBadRequest, "Invalid or missing year", err)
		return 0, 0, false
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid or missing month", err)
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.Holidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, holiday := range holidays {
		dtos = append(dtos, toHolidayDTO(holiday))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var body CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.Parse(dateLayout, body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Holiday name is required", nil)
		return
	}
	holiday := calendar.Holiday{
		ID:        uuid.NewString(),
		Date:      date,
		Name:      body.Name,
		Recurring: body.Recurring,
	}
	if err := h.Holidays.PutHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Holidays.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS - scheduled-job operations, manually triggerable
// =============================================================================

type adminJobRequest struct {
	EmployeeID string `json:"employee_id,omitempty"` // empty = all active
}

type adminJobResponse struct {
	Processed int      `json:"processed"`
	Employees []string `json:"employees"`
}

// TriggerAccrual runs the monthly accrual for one employee or the whole
// roster. Idempotent per (employee, month).
func (h *Handler) TriggerAccrual(w http.ResponseWriter, r *http.Request) {
	h.runLedgerJob(w, r, h.Ledger.AccrueMonthly)
}

// TriggerAnnualReset runs the annual carry-over reset. Idempotent per
// (employee, year).
func (h *Handler) TriggerAnnualReset(w http.ResponseWriter, r *http.Request) {
	h.runLedgerJob(w, r, h.Ledger.ResetAnnual)
}

func (h *Handler) runLedgerJob(w http.ResponseWriter, r *http.Request, job func(ctx context.Context, employeeID string) (*ledger.Balance, error)) {
	var body adminJobRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	var targets []string
	if body.EmployeeID != "" {
		targets = []string{body.EmployeeID}
	} else {
		var err error
		targets, err = h.Directory.ActiveEmployees(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
			return
		}
	}

	resp := adminJobResponse{Employees: []string{}}
	for _, id := range targets {
		if _, err := job(r.Context(), id); err != nil {
			log.Printf("[Admin] ledger job failed for %s: %v", id, err)
			continue
		}
		resp.Processed++
		resp.Employees = append(resp.Employees, id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, workflow.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, workflow.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "Insufficient balance", err)
	case errors.Is(err, workflow.ErrConflict):
		writeError(w, http.StatusConflict, "Conflicting request", err)
	case errors.Is(err, workflow.ErrInvalidState):
		writeError(w, http.StatusConflict, "Invalid request state", err)
	case errors.Is(err, ledger.ErrNotDeducted):
		writeError(w, http.StatusConflict, "No active deduction", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
