package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"dompet/internal/aggregate"
	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/ports"
)

type transactionRequest struct {
	Date          string                 `json:"date"`
	Description   string                 `json:"description"`
	Amount        core.Money             `json:"amount"`
	Type          core.TransactionType   `json:"type"`
	Category      string                 `json:"category"`
	SubCategory   string                 `json:"sub_category"`
	Account       string                 `json:"account"`
	PaymentMethod core.PaymentMethod     `json:"payment_method"`
	Status        core.TransactionStatus `json:"status"`
	Notes         string                 `json:"notes"`
	Tags          []string               `json:"tags"`
}

func (req transactionRequest) transaction() (core.Transaction, error) {
	date, err := parseDay("date", req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Date:          date,
		Description:   sanitizeInput(req.Description),
		Amount:        req.Amount,
		Type:          core.TransactionType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Category:      sanitizeInput(req.Category),
		SubCategory:   sanitizeInput(req.SubCategory),
		Account:       sanitizeInput(req.Account),
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
		Notes:         sanitizeInput(req.Notes),
		Tags:          req.Tags,
	}, nil
}

// handleListTransactions lists one month, or every month with month=all.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month := ""
	if q.Get("month") != "all" {
		var err error
		if month, err = s.monthParam(r); err != nil {
			s.fail(w, r, "Invalid transaction filter", log.OpList, err)
			return
		}
	}
	limit, err := intParam(r, "limit", 0, 0, 10000)
	if err != nil {
		s.fail(w, r, "Invalid transaction filter", log.OpList, err)
		return
	}
	filter := ports.TransactionFilter{
		Type:     core.TransactionType(q.Get("type")),
		Category: q.Get("category"),
		Account:  q.Get("account"),
		Limit:    limit,
	}

	txs, err := s.transactions.List(r.Context(), month, filter)
	if err != nil {
		s.fail(w, r, "Failed to list transactions", log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"month_year": month, "transactions": txs})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid transaction request", log.OpCreate, err)
		return
	}
	t, err := req.transaction()
	if err != nil {
		s.fail(w, r, "Invalid transaction request", log.OpCreate, err)
		return
	}

	created, debt, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		s.fail(w, r, "Failed to create transaction", log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().
			WithEntity("transaction", created.ID).
			WithOperation(log.OpCreate).
			ToSlice()...)
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": created, "debt": debt})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid transaction request", log.OpUpdate, err)
		return
	}
	t, err := req.transaction()
	if err != nil {
		s.fail(w, r, "Invalid transaction request", log.OpUpdate, err)
		return
	}
	t.ID = r.PathValue("id")
	if err := s.transactions.Update(r.Context(), t); err != nil {
		s.fail(w, r, "Failed to update transaction", log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": t})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.transactions.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "Failed to delete transaction", log.OpDelete, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.NewFields().WithEntity("transaction", id).WithOperation(log.OpDelete).ToSlice()...)
	w.WriteHeader(http.StatusNoContent)
}

// handleTransactionStats totals one month, or all time with month=all.
func (s *Server) handleTransactionStats(w http.ResponseWriter, r *http.Request) {
	month := ""
	if r.URL.Query().Get("month") != "all" {
		var err error
		if month, err = s.monthParam(r); err != nil {
			s.fail(w, r, "Invalid stats request", log.OpRead, err)
			return
		}
	}
	txs, err := s.transactions.List(r.Context(), month, ports.TransactionFilter{})
	if err != nil {
		s.fail(w, r, "Failed to load transactions", log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.TransactionStats(txs))
}

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string               `json:"description"`
		Type        core.TransactionType `json:"type"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid categorization request", log.OpRead, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		s.fail(w, r, "Invalid categorization request", log.OpRead, core.NewInvalidInput("description", core.ErrEmptyDescription.Error()))
		return
	}
	if req.Type == "" {
		req.Type = core.Expense
	}
	if s.categorizer == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "categorization rules not loaded")
		return
	}
	writeJSON(w, http.StatusOK, s.categorizer.Suggest(req.Description, req.Type))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to list accounts", log.OpList, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// handleCreateAccount opens an account whose balance starts at its opening
// balance. Names are unique regardless of case.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var a core.Account
	if err := decodeJSON(w, r, &a); err != nil {
		s.fail(w, r, "Invalid account request", log.OpCreate, err)
		return
	}
	a.ID = ""
	a.Name = sanitizeInput(a.Name)
	a.Type = sanitizeInput(a.Type)
	if a.OpeningBalance.Cents < 0 {
		s.fail(w, r, "Invalid account request", log.OpCreate, core.NewInvalidInput("opening_balance", "cannot be negative"))
		return
	}
	a.Balance = a.OpeningBalance
	if err := a.Validate(); err != nil {
		s.fail(w, r, "Invalid account request", log.OpCreate, err)
		return
	}

	created, err := s.store.CreateAccount(r.Context(), a)
	if err != nil {
		s.fail(w, r, "Failed to create account", log.OpCreate, err)
		return
	}
	s.publish(r, amqp.NewLedgerEvent(amqp.AccountChanged, created.ID, created.Name))
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateAccount renames or retypes an account. The stored balance is
// left to the reconciler, which rederives it from the new opening balance.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req core.Account
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid account request", log.OpUpdate, err)
		return
	}
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to load accounts", log.OpUpdate, err)
		return
	}
	id := r.PathValue("id")
	idx := slices.IndexFunc(accounts, func(a core.Account) bool { return a.ID == id })
	if idx < 0 {
		s.fail(w, r, "Failed to update account", log.OpUpdate, fmt.Errorf("account %s: %w", id, core.ErrNotFound))
		return
	}
	if req.OpeningBalance.Cents < 0 {
		s.fail(w, r, "Invalid account request", log.OpUpdate, core.NewInvalidInput("opening_balance", "cannot be negative"))
		return
	}
	a := accounts[idx]
	a.Name = sanitizeInput(req.Name)
	a.Type = sanitizeInput(req.Type)
	a.OpeningBalance = req.OpeningBalance
	if err := s.store.UpdateAccount(r.Context(), a); err != nil {
		s.fail(w, r, "Failed to update account", log.OpUpdate, err)
		return
	}
	s.publish(r, amqp.NewLedgerEvent(amqp.AccountChanged, a.ID, a.Name))
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteAccount(r.Context(), id); err != nil {
		s.fail(w, r, "Failed to delete account", log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReconciliation derives every balance from the transactions without
// writing anything back.
func (s *Server) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to list accounts", log.OpReconcile, err)
		return
	}
	txs, err := s.store.ListTransactions(r.Context(), ports.TransactionFilter{})
	if err != nil {
		s.fail(w, r, "Failed to list transactions", log.OpReconcile, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.ReconcileBalances(accounts, txs))
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	holdings, issues, err := s.store.ListHoldings(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to list holdings", log.OpList, err)
		return
	}
	report := aggregate.Report{Excluded: issues}
	warnExcluded(r, "Portfolio excludes malformed holdings", "", report)
	type holdingView struct {
		Kind    core.HoldingKind `json:"kind"`
		Holding core.Holding     `json:"holding"`
	}
	views := make([]holdingView, len(holdings))
	for i, h := range holdings {
		views[i] = holdingView{Kind: h.Kind(), Holding: h}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"holdings":  views,
		"portfolio": aggregate.Summarize(holdings),
		"excluded":  report.Excluded,
	})
}

// handleCreateHolding takes {"kind": "...", "holding": {...}} where the
// inner object carries the fields of that kind.
func (s *Server) handleCreateHolding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind    string          `json:"kind"`
		Holding json.RawMessage `json:"holding"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid holding request", log.OpCreate, err)
		return
	}
	kind, err := core.ParseHoldingKind(req.Kind)
	if err != nil {
		s.fail(w, r, "Invalid holding request", log.OpCreate, err)
		return
	}
	h, err := core.DecodeHolding(kind, req.Holding)
	if err != nil {
		s.fail(w, r, "Invalid holding request", log.OpCreate, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	h = core.NormalizeHolding(core.WithHoldingID(h, ""))
	if err := h.Validate(); err != nil {
		s.fail(w, r, "Invalid holding request", log.OpCreate, err)
		return
	}

	created, err := s.store.CreateHolding(r.Context(), h)
	if err != nil {
		s.fail(w, r, "Failed to create holding", log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"kind": created.Kind(), "holding": created})
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteHolding(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "Failed to delete holding", log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publish forwards an event for writes made directly against the store.
func (s *Server) publish(r *http.Request, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(r.Context(), ev); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to publish ledger event",
			log.FieldEventKind, ev.Kind, log.FieldEntityID, ev.EntityID, log.FieldError, err)
	}
}
