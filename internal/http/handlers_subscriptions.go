package http

import (
	"fmt"
	"net/http"

	"pocketwise/internal/core"
	applog "pocketwise/internal/log"
)

// handleListSubscriptions sweeps the caller's subscriptions; alerts raised by
// the sweep are returned alongside the list.
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	now := s.now()
	sweep, err := s.svc.Subscriptions.List(r.Context(), uid, now)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(toSubscriptionListDTO(sweep, now)).Write(w)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	sub, err := req.toSubscription(uid)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	now := s.now()
	sub, tx, err := s.svc.Subscriptions.Create(r.Context(), sub, now)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createSubscriptionResponse{
		Subscription: toSubscriptionDTO(sub, now),
		Transaction:  toTransactionDTO(tx),
	}).Write(w)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	sub, err := req.toSubscription(uid)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	sub.ID = r.PathValue("id")
	sub, err = s.svc.Subscriptions.Update(r.Context(), sub)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toSubscriptionDTO(sub, s.now())).Write(w)
}

func (s *Server) handleSetSubscriptionActive(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, applog.OpUpdate, fmt.Errorf("%w: active is required", core.ErrInvalidInput))
		return
	}
	if err := s.svc.Subscriptions.SetActive(r.Context(), uid, r.PathValue("id"), *req.Active); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Subscriptions.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
