package http

import (
	"net/http"
	"strings"

	"pocketwise/internal/core"
	applog "pocketwise/internal/log"
)

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpEvaluate, err)
		return
	}
	st, err := s.svc.Budget.Status(r.Context(), uid, s.now())
	if err != nil {
		writeError(w, r, applog.OpEvaluate, err)
		return
	}
	NewJSONResponse().Body(toBudgetDTO(st)).Write(w)
}

// handleSetBudget upserts the limit for the given month, the current one when
// omitted. An amount of zero clears the budget.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req setBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	month := core.MonthOf(core.DateOf(s.now()))
	if strings.TrimSpace(req.Month) != "" {
		if month, err = core.ParseYearMonth(req.Month); err != nil {
			writeError(w, r, applog.OpUpdate, err)
			return
		}
	}
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.svc.Budget.Set(r.Context(), uid, month, amount); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(setBudgetRequest{Month: month.String(), Amount: amount.String()}).Write(w)
}
