package http

import (
	"net/http"

	"pocketwise/internal/aggregate"
	"pocketwise/internal/core"
	applog "pocketwise/internal/log"
)

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	months, err := queryInt(r, "months")
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	trend, err := s.svc.Analytics.Trend(r.Context(), uid, s.now(), months)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toTrendDTO(trend)).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	now := s.now()
	totals, err := s.svc.Analytics.Categories(r.Context(), uid, now)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"month":      core.MonthOf(core.DateOf(now)).String(),
		"categories": toCategoryDTOs(totals),
	}).Write(w)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(aggregate.Month)
	}
	g, err := aggregate.ParseGranularity(by)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	buckets, err := s.svc.Analytics.Group(r.Context(), uid, g)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toBucketDTOs(buckets)).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	months, err := queryInt(r, "months")
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	location, err := s.svc.Analytics.Export(r.Context(), uid, s.now(), months)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	NewJSONResponse().Body(map[string]string{"location": location}).Write(w)
}
