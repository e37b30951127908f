package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"dompet/internal/aggregate"
	"dompet/internal/core"
	"dompet/internal/insights"
	"dompet/internal/log"
	"dompet/internal/period"
	"dompet/internal/ports"
	"dompet/internal/snapshot"
)

// handleDashboard serves the overview of a month (default: the current one).
// Results are cached until the next write or the cache TTL.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		s.fail(w, r, "Invalid dashboard request", log.OpRead, err)
		return
	}
	months, err := intParam(r, "months", s.months, 1, 60)
	if err != nil {
		s.fail(w, r, "Invalid dashboard request", log.OpRead, err)
		return
	}
	asOf := s.asOf(month)
	key := "dashboard:" + asOf.Format("2006-01-02") + ":" + strconv.Itoa(months)

	d, err := s.dashboards.Get(r.Context(), key, func(ctx context.Context) (aggregate.Dashboard, error) {
		snap, err := snapshot.Load(ctx, s.store, asOf)
		if err != nil {
			return aggregate.Dashboard{}, err
		}
		return aggregate.BuildDashboard(snap, aggregate.Options{Months: months}), nil
	})
	if err != nil {
		s.fail(w, r, "Failed to build dashboard", log.OpRead, err)
		return
	}
	warnExcluded(r, "Dashboard excludes malformed records", month, d.Report)
	writeJSON(w, http.StatusOK, d)
}

// handleAnalytics serves the trend and breakdowns of the months ending at
// month.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		s.fail(w, r, "Invalid analytics request", log.OpRead, err)
		return
	}
	months, err := intParam(r, "months", s.months, 1, 60)
	if err != nil {
		s.fail(w, r, "Invalid analytics request", log.OpRead, err)
		return
	}
	asOf := s.asOf(month)
	key := "analytics:" + month + ":" + strconv.Itoa(months)

	a, err := s.analytics.Get(r.Context(), key, func(ctx context.Context) (aggregate.Analytics, error) {
		snap, err := snapshot.Load(ctx, s.store, asOf)
		if err != nil {
			return aggregate.Analytics{}, err
		}
		return aggregate.BuildAnalytics(snap, months), nil
	})
	if err != nil {
		s.fail(w, r, "Failed to build analytics", log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		s.fail(w, r, "Failed to list accounts", log.OpRead, err)
		return
	}
	holdings, issues, err := s.store.ListHoldings(ctx)
	if err != nil {
		s.fail(w, r, "Failed to list holdings", log.OpRead, err)
		return
	}
	debts, err := s.store.ListDebts(ctx)
	if err != nil {
		s.fail(w, r, "Failed to list debts", log.OpRead, err)
		return
	}
	bs := aggregate.ComputeBalanceSheet(accounts, holdings, debts, issues...)
	warnExcluded(r, "Balance sheet excludes malformed holdings", "", bs.Report)
	writeJSON(w, http.StatusOK, bs)
}

// warnExcluded logs a warning when report left records out.
func warnExcluded(r *http.Request, msg, month string, report aggregate.Report) {
	if report.Complete() {
		return
	}
	fields := log.NewFields().WithOperation(log.OpRead)
	if month != "" {
		fields = fields.WithMonth(month)
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), msg,
		append(fields.ToSlice(), "excluded", len(report.Excluded))...)
}

// handleCategoryBreakdown sums one transaction type per category over
// period, which is a month (YYYY-MM), a year (YYYY) or empty for all time.
func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := core.TransactionType(strings.ToLower(q.Get("type")))
	if typ == "" {
		typ = core.Expense
	}
	if !typ.Valid() {
		s.fail(w, r, "Invalid category request", log.OpRead, core.NewInvalidInput("type", "type must be income or expense"))
		return
	}
	filter := aggregate.PeriodFilter(strings.TrimSpace(q.Get("period")))
	if !validPeriodFilter(filter) {
		s.fail(w, r, "Invalid category request", log.OpRead, core.NewInvalidInput("period", "period must be YYYY, YYYY-MM or empty"))
		return
	}
	top, err := intParam(r, "top", -1, -1, 1000)
	if err != nil {
		s.fail(w, r, "Invalid category request", log.OpRead, err)
		return
	}

	txs, err := s.transactions.List(r.Context(), "", ports.TransactionFilter{})
	if err != nil {
		s.fail(w, r, "Failed to load transactions", log.OpRead, err)
		return
	}
	rows, report := aggregate.CategoryBreakdown(txs, typ, filter)
	if rows == nil {
		rows = []aggregate.CategoryValue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":       typ,
		"period":     filter,
		"categories": aggregate.Top(rows, top),
		"excluded":   report.Excluded,
	})
}

func validPeriodFilter(f aggregate.PeriodFilter) bool {
	switch len(f) {
	case 0:
		return true
	case 4:
		_, err := strconv.Atoi(string(f))
		return err == nil
	}
	return period.Valid(string(f))
}

// handleAlerts serves the alert feed of the current month, most severe
// first.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	snap, err := snapshot.Load(r.Context(), s.store, s.now())
	if err != nil {
		s.fail(w, r, "Failed to load snapshot", log.OpRead, err)
		return
	}
	alerts := insights.FromSnapshot(snap)
	if alerts == nil {
		alerts = []insights.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}
