package http

import (
	"net/http"
	"net/url"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// windowed parses the owner and window shared by every aggregate route.
func windowed(r *http.Request) (int64, core.Window, url.Values, error) {
	ownerID, err := ParseOwner(r)
	if err != nil {
		return 0, core.Window{}, nil, err
	}
	q := r.URL.Query()
	w, err := ParseWindow(q)
	if err != nil {
		return 0, core.Window{}, nil, err
	}
	return ownerID, w, q, nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, window, _, err := windowed(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	b, err := s.analytics.Balance(r.Context(), ownerID, window)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(viewBalance(b)).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ownerID, window, _, err := windowed(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	b, err := s.analytics.CategoryBreakdown(r.Context(), ownerID, window)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(viewBreakdown(b)).Write(w)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	ownerID, window, q, err := windowed(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	bucket, err := ParseBucket(q)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	dense, err := ParseBool(q, "dense")
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}

	points, err := s.analytics.Trend(r.Context(), ownerID, window, bucket, dense)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(viewTrend(points)).Write(w)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	ownerID, window, q, err := windowed(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	kind, err := ParseKind(q)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	limit, err := ParseLimit(q)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}

	top, err := s.analytics.TopCategories(r.Context(), ownerID, kind, window, limit)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(viewTop(top)).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, window, _, err := windowed(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	sum, err := s.analytics.Summary(r.Context(), ownerID, window)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(viewSummary(sum)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ownerID, window, q, err := windowed(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	bucket, err := ParseBucket(q)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	limit, err := ParseLimit(q)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}

	d, err := s.analytics.Dashboard(r.Context(), ownerID, window, bucket, limit)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(viewDashboard(d)).Write(w)
}
