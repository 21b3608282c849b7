package http

import (
	"fmt"
	"net/http"

	"gagyebu/internal/core"
)

type totalsResponse struct {
	Month        string     `json:"month"`
	MonthTotals  totalsBody `json:"month_totals"`
	LedgerTotals totalsBody `json:"ledger_totals"`
	Count        int        `json:"count"`
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	ym, err := parseMonthParam(r, s.store.SelectedMonth())
	if err != nil {
		writeError(w, r, "totals", err)
		return
	}

	ledgerTotals := s.store.Totals()
	monthTotals := ledgerTotals
	if ym != monthAll {
		monthTotals = s.store.MonthTotals(ym)
	}
	NewResponse().JSON(totalsResponse{
		Month:        ym,
		MonthTotals:  newTotalsBody(monthTotals),
		LedgerTotals: newTotalsBody(ledgerTotals),
		Count:        s.store.Len(),
	}).Write(w)
}

type daysResponse struct {
	Month string          `json:"month"`
	Days  []core.DayGroup `json:"days"`
}

// handleDays groups the filtered month view by date, most recent first.
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	ym, err := parseMonthParam(r, s.store.SelectedMonth())
	if err != nil {
		writeError(w, r, "days", err)
		return
	}

	NewResponse().JSON(daysResponse{Month: ym, Days: s.groupDays(ym, parseFilter(r))}).Write(w)
}

// groupDays memoizes day groupings per ledger version. A result is only
// cached when no mutation landed while it was computed.
func (s *Server) groupDays(ym string, f core.Filter) []core.DayGroup {
	version := s.store.Version()
	key := fmt.Sprintf("%d|%s|%s|%s", version, ym, f.Type, f.Query)
	if days, ok := s.days.Get(key); ok {
		return days
	}

	days := core.GroupByDay(f.Apply(s.viewFor(ym)))
	if days == nil {
		days = []core.DayGroup{}
	}
	if s.store.Version() == version {
		s.days.Set(key, days)
	}
	return days
}

type selectedMonthBody struct {
	Month string `json:"month"`
}

func (s *Server) handleGetSelectedMonth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(selectedMonthBody{Month: s.store.SelectedMonth()}).Write(w)
}

func (s *Server) handleSetSelectedMonth(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body selectedMonthBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, "select_month", err)
		return
	}
	if err := s.store.SetSelectedMonth(sanitizeInput(body.Month)); err != nil {
		writeError(w, r, "select_month", err)
		return
	}
	NewResponse().JSON(selectedMonthBody{Month: s.store.SelectedMonth()}).Write(w)
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(core.DefaultCategories).Write(w)
}
