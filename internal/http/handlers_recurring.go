package http

import (
	"net/http"
	"strings"
	"time"

	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/period"
	"dompet/internal/services"
)

type recurringView struct {
	core.RecurringDefinition
	NextDue time.Time `json:"next_due"`
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	defs, err := s.store.ListRecurringDefinitions(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to list recurring definitions", log.OpList, err)
		return
	}
	now := s.now()
	views := make([]recurringView, len(defs))
	for i, def := range defs {
		views[i] = recurringView{RecurringDefinition: def, NextDue: services.NextDue(def, now)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recurring": views})
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string               `json:"name"`
		Amount     core.Money           `json:"amount"`
		Type       core.TransactionType `json:"type"`
		Category   string               `json:"category"`
		Account    string               `json:"account"`
		Frequency  core.Frequency       `json:"frequency"`
		DayOfMonth int                  `json:"day_of_month"`
		IsActive   *bool                `json:"is_active"`
		Notes      string               `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid recurring request", log.OpCreate, err)
		return
	}
	def := core.RecurringDefinition{
		Name:       sanitizeInput(req.Name),
		Amount:     req.Amount,
		Type:       core.TransactionType(strings.ToLower(string(req.Type))),
		Category:   sanitizeInput(req.Category),
		Account:    sanitizeInput(req.Account),
		Frequency:  req.Frequency,
		DayOfMonth: req.DayOfMonth,
		IsActive:   req.IsActive == nil || *req.IsActive,
		Notes:      sanitizeInput(req.Notes),
	}
	if def.Frequency == "" {
		def.Frequency = core.Monthly
	}
	if err := def.Validate(); err != nil {
		s.fail(w, r, "Invalid recurring request", log.OpCreate, err)
		return
	}
	created, err := s.store.CreateRecurringDefinition(r.Context(), def)
	if err != nil {
		s.fail(w, r, "Failed to create recurring definition", log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, recurringView{RecurringDefinition: created, NextDue: services.NextDue(created, s.now())})
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRecurringDefinition(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "Failed to delete recurring definition", log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBills lists the active definitions of the current month with their
// paid state and due status.
func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.recurring.Bills(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to load bills", log.OpList, err)
		return
	}
	if bills == nil {
		bills = []services.Bill{}
	}
	var unpaid int
	for _, b := range bills {
		if !b.Paid {
			unpaid++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month_year": period.MonthKey(s.now()),
		"bills":      bills,
		"unpaid":     unpaid,
	})
}

type monthRequest struct {
	MonthYear string `json:"month_year"`
}

// month returns the requested month, or the current one when empty.
func (req monthRequest) month(now time.Time) string {
	if m := strings.TrimSpace(req.MonthYear); m != "" {
		return m
	}
	return period.MonthKey(now)
}

// handleMarkPaid materializes one definition for a month. A second call for
// the same month answers 409 and creates nothing.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, "Invalid mark paid request", log.OpMarkPaid, err)
			return
		}
	}
	month := req.month(s.now())
	p, tx, err := s.recurring.MarkPaid(r.Context(), r.PathValue("id"), month)
	if err != nil {
		s.fail(w, r, "Failed to mark recurring paid", log.OpMarkPaid, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"payment": p, "transaction": tx})
}

// handleGenerateDue marks paid every due, unpaid definition of a month. It
// is safe to repeat.
func (s *Server) handleGenerateDue(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, "Invalid generate request", log.OpGenerate, err)
			return
		}
	}
	res, err := s.recurring.GenerateDue(r.Context(), req.month(s.now()))
	if err != nil {
		s.fail(w, r, "Recurring generation failed", log.OpGenerate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
