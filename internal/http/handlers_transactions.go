package http

import (
	"net/http"

	"pocketwise/internal/core"
	applog "pocketwise/internal/log"
)

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	txs, err := s.svc.Transactions.Recent(r.Context(), uid, limit)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(toTransactionDTOs(txs)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	tx, err := req.toTransaction(uid, s.now())
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	tx, err = s.svc.Transactions.Create(r.Context(), tx)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionDTO(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Transactions.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	wallet, err := s.svc.Transactions.Wallet(r.Context(), uid)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toWalletDTO(wallet)).Write(w)
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	var req topUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	tx, err := s.svc.Transactions.TopUp(r.Context(), uid, amount, s.now())
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionDTO(tx)).Write(w)
}
