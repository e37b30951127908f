package http

import (
	"net/http"

	"dompet/internal/amortization"
	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/ports"
	"dompet/internal/services"
)

// handleBudgetReport serves the budgets of a month with their spending.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		s.fail(w, r, "Invalid budget request", log.OpRead, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), month, ports.TransactionFilter{Type: core.Expense})
	if err != nil {
		s.fail(w, r, "Failed to load transactions", log.OpRead, err)
		return
	}
	report, err := s.budgets.Month(r.Context(), month, txs)
	if err != nil {
		s.fail(w, r, "Failed to build budget report", log.OpRead, err)
		return
	}
	warnExcluded(r, "Budget report excludes malformed transactions", month, report.Report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var b core.Budget
	if err := decodeJSON(w, r, &b); err != nil {
		s.fail(w, r, "Invalid budget request", log.OpCreate, err)
		return
	}
	b.ID = ""
	b.Category = sanitizeInput(b.Category)
	created, err := s.budgets.Create(r.Context(), b)
	if err != nil {
		s.fail(w, r, "Failed to create budget", log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var b core.Budget
	if err := decodeJSON(w, r, &b); err != nil {
		s.fail(w, r, "Invalid budget request", log.OpUpdate, err)
		return
	}
	b.ID = r.PathValue("id")
	b.Category = sanitizeInput(b.Category)
	updated, err := s.budgets.Update(r.Context(), b)
	if err != nil {
		s.fail(w, r, "Failed to update budget", log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBudget(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "Failed to delete budget", log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.goals.Progress(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to load goals", log.OpList, err)
		return
	}
	if progress == nil {
		progress = []services.Progress{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": progress})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string     `json:"name"`
		Category      string     `json:"category"`
		TargetAmount  core.Money `json:"target_amount"`
		CurrentAmount core.Money `json:"current_amount"`
		TargetDate    string     `json:"target_date"`
		Notes         string     `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid goal request", log.OpCreate, err)
		return
	}
	target, err := parseDay("target_date", req.TargetDate)
	if err != nil {
		s.fail(w, r, "Invalid goal request", log.OpCreate, err)
		return
	}
	g := core.FinancialGoal{
		Name:          sanitizeInput(req.Name),
		Category:      sanitizeInput(req.Category),
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    target,
		Notes:         sanitizeInput(req.Notes),
	}
	g.IsAchieved = g.Achieved()
	if err := g.Validate(); err != nil {
		s.fail(w, r, "Invalid goal request", log.OpCreate, err)
		return
	}
	created, err := s.store.CreateGoal(r.Context(), g)
	if err != nil {
		s.fail(w, r, "Failed to create goal", log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, services.ProgressOf(created, s.now()))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "Failed to delete goal", log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount core.Money `json:"amount"`
		Notes  string     `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid contribution request", log.OpCreate, err)
		return
	}
	g, err := s.goals.Contribute(r.Context(), r.PathValue("id"), req.Amount, sanitizeInput(req.Notes))
	if err != nil {
		s.fail(w, r, "Failed to record contribution", log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, services.ProgressOf(g, s.now()))
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetGoal(r.Context(), id); err != nil {
		s.fail(w, r, "Failed to load goal", log.OpList, err)
		return
	}
	contributions, err := s.store.ListContributions(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to list contributions", log.OpList, err)
		return
	}
	if contributions == nil {
		contributions = []core.GoalContribution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal_id": id, "contributions": contributions})
}

// handleDebtProjections lists active debts with payoff date, due status and
// amortization.
func (s *Server) handleDebtProjections(w http.ResponseWriter, r *http.Request) {
	projections, err := s.debts.Projections(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to load debts", log.OpList, err)
		return
	}
	if projections == nil {
		projections = []services.Projection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": projections})
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DebtType              core.DebtType `json:"debt_type"`
		Creditor              string        `json:"creditor"`
		PrincipalAmount       core.Money    `json:"principal_amount"`
		CurrentBalance        *core.Money   `json:"current_balance"`
		InterestRate          float64       `json:"interest_rate"`
		MonthlyPayment        core.Money    `json:"monthly_payment"`
		RemainingInstallments int           `json:"remaining_installments"`
		DueDay                int           `json:"due_day"`
		StartDate             string        `json:"start_date"`
		Notes                 string        `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid debt request", log.OpCreate, err)
		return
	}
	start, err := parseDay("start_date", req.StartDate)
	if err != nil {
		s.fail(w, r, "Invalid debt request", log.OpCreate, err)
		return
	}
	if start.IsZero() {
		start = s.now()
	}
	d := core.Debt{
		DebtType:              req.DebtType,
		Creditor:              sanitizeInput(req.Creditor),
		PrincipalAmount:       req.PrincipalAmount,
		CurrentBalance:        req.PrincipalAmount,
		InterestRate:          req.InterestRate,
		MonthlyPayment:        req.MonthlyPayment,
		RemainingInstallments: req.RemainingInstallments,
		DueDay:                req.DueDay,
		StartDate:             start,
		Notes:                 sanitizeInput(req.Notes),
		IsActive:              true,
	}
	if d.DebtType == "" {
		d.DebtType = core.DebtOther
	}
	if req.CurrentBalance != nil {
		d.CurrentBalance = *req.CurrentBalance
	}
	if d.MonthlyPayment.Cents == 0 && d.RemainingInstallments > 0 {
		if res, err := amortization.Calculate(d.CurrentBalance, d.InterestRate, d.RemainingInstallments); err == nil {
			d.MonthlyPayment = res.MonthlyPayment
		}
	}
	if err := d.Validate(); err != nil {
		s.fail(w, r, "Invalid debt request", log.OpCreate, err)
		return
	}
	created, err := s.store.CreateDebt(r.Context(), d)
	if err != nil {
		s.fail(w, r, "Failed to create debt", log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, services.ProjectionOf(created, s.now()))
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDebt(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "Failed to delete debt", log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayDebt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount core.Money `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid debt payment", log.OpUpdate, err)
		return
	}
	d, err := s.debts.Pay(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		s.fail(w, r, "Failed to record debt payment", log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ProjectionOf(d, s.now()))
}

// handleAmortization computes the fixed payment of a loan and, with
// "schedule": true, its full repayment table.
func (s *Server) handleAmortization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal    core.Money `json:"principal"`
		InterestRate float64    `json:"interest_rate"`
		Months       int        `json:"months"`
		Schedule     bool       `json:"schedule"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid amortization request", log.OpRead, err)
		return
	}
	res, err := amortization.Calculate(req.Principal, req.InterestRate, req.Months)
	if err != nil {
		s.fail(w, r, "Invalid amortization request", log.OpRead, err)
		return
	}
	out := map[string]any{"result": res}
	if req.Schedule {
		rows, err := amortization.Schedule(req.Principal, req.InterestRate, req.Months)
		if err != nil {
			s.fail(w, r, "Invalid amortization request", log.OpRead, err)
			return
		}
		out["schedule"] = rows
	}
	writeJSON(w, http.StatusOK, out)
}
