package http

import (
	"net/http"

	"gagyebu/internal/core"
)

type listResponse struct {
	Month  string             `json:"month"`
	Type   core.FilterType    `json:"type"`
	Query  string             `json:"q,omitempty"`
	Count  int                `json:"count"`
	Items  []core.Transaction `json:"items"`
	Totals totalsBody         `json:"totals"`
}

// viewFor returns the month view, or the whole ledger for month=all.
func (s *Server) viewFor(ym string) []core.Transaction {
	if ym == monthAll {
		return s.store.All()
	}
	return s.store.MonthView(ym)
}

// handleListTransactions serves the selected (or requested) month, filtered
// by type and query. Totals cover the unfiltered view.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ym, err := parseMonthParam(r, s.store.SelectedMonth())
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	filter := parseFilter(r)

	view := s.viewFor(ym)
	items := filter.Apply(view)
	NewResponse().JSON(listResponse{
		Month:  ym,
		Type:   filter.Type,
		Query:  filter.Query,
		Count:  len(items),
		Items:  items,
		Totals: newTotalsBody(core.Summarize(view)),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "add", err)
		return
	}

	tx, err := s.store.Add(r.Context(), req.toTransaction(s.opts.Now()))
	if err != nil {
		writeError(w, r, "add", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		JSON(tx).
		Write(w)
}

// handleUpdateTransaction replaces the record named in the path. The path id
// wins over any id in the body.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	id := sanitizeInput(r.PathValue("id"))

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update", err)
		return
	}
	req.ID = id
	tx := req.toTransaction(s.opts.Now())

	ok, err := s.store.Update(r.Context(), tx)
	if err != nil {
		writeError(w, r, "update", err)
		return
	}
	if !ok {
		writeError(w, r, "update", notFound("transaction %q not found", id))
		return
	}
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	if !s.store.Remove(r.Context(), id) {
		writeError(w, r, "remove", notFound("transaction %q not found", id))
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

type clearMonthResponse struct {
	Month   string `json:"month"`
	Removed int    `json:"removed"`
}

func (s *Server) handleClearMonth(w http.ResponseWriter, r *http.Request) {
	ym := sanitizeInput(r.PathValue("month"))
	if !core.ValidMonthKey(ym) {
		writeError(w, r, "clear_month", badRequest("invalid month %q: expected YYYY-MM", ym))
		return
	}

	removed, err := s.store.ClearMonth(r.Context(), ym)
	if err != nil {
		writeError(w, r, "clear_month", err)
		return
	}
	NewResponse().JSON(clearMonthResponse{Month: ym, Removed: removed}).Write(w)
}
