package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

func (s *Server) handleListCosts(w http.ResponseWriter, r *http.Request) {
	month, year, ok := monthYear(w, r)
	if !ok {
		return
	}
	costs, err := s.store.ListCosts(r.Context(), month, year)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, costs)
}

func (s *Server) handleCreateCost(w http.ResponseWriter, r *http.Request) {
	var in store.CostInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	var v validator
	v.required("service", in.Service)
	if in.Amount < 0 {
		v.addf("amount must not be negative")
	}
	v.oneOf("billing_cycle", in.BillingCycle, store.BillingCycles)
	v.date("incurred_on", in.IncurredOn)
	if in.Currency != "" && len(in.Currency) != 3 {
		v.addf("currency must be a three-letter code")
	}
	if !v.ok(w) {
		return
	}

	c, err := s.store.CreateCost(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleCostSummary totals the requested month, or the current one.
func (s *Server) handleCostSummary(w http.ResponseWriter, r *http.Request) {
	month, year, ok := monthYear(w, r)
	if !ok {
		return
	}
	if month == 0 {
		now := s.now()
		month, year = int(now.Month()), now.Year()
	}
	sum, err := s.store.SummarizeCosts(r.Context(), month, year)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDeleteCost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCost(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}
