package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/cacherefresh"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
)

const dayLayout = "2006-01-02"

// Refresher is satisfied by *services.SearchService.
type Refresher interface {
	TriggerRefresh(ctx context.Context, kind cacherefresh.Kind, start, end *time.Time) (cacherefresh.Context, error)
}

type refreshResponse struct {
	Kind        string `json:"kind"`
	Reason      string `json:"reason"`
	FullRefresh bool   `json:"full_refresh"`
	HasFilters  bool   `json:"has_filters"`
	DateStart   string `json:"date_start,omitempty"`
	DateEnd     string `json:"date_end,omitempty"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

// refreshHandler runs one cache refresh synchronously.
//
//	POST /cache/refresh?kind=full
//	POST /cache/refresh?kind=scheduled[&start=2024-01-01&end=2024-01-31]
//	POST /cache/refresh?kind=filtered&start=2024-01-01&end=2024-01-31
func refreshHandler(rf Refresher, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		kind, err := cacherefresh.ParseKind(q.Get("kind"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		start, err := parseDay(q.Get("start"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		end, err := parseDay(q.Get("end"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		c, err := rf.TriggerRefresh(ctx, kind, start, end)
		if err != nil {
			var ve *filters.ValidationError
			switch {
			case errors.Is(err, cacherefresh.ErrRefreshInFlight), errors.Is(err, cacherefresh.ErrSuperseded):
				writeJSON(w, http.StatusConflict, errorResponse{Error: "refresh already running"})
			case errors.As(err, &ve):
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid refresh window", Messages: ve.Messages()})
			case errors.Is(err, filters.ErrValidation):
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "start and end are required"})
			default:
				log.Error(ctx, "cache refresh failed", "kind", kind.String(), "error", err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "refresh failed"})
			}
			return
		}

		resp := refreshResponse{
			Kind:        c.Kind().String(),
			Reason:      c.Reason(),
			FullRefresh: c.IsFullRefresh(),
			HasFilters:  c.HasFilters(),
		}
		if ds, ok := c.DateStart(); ok {
			resp.DateStart = ds.Format(dayLayout)
		}
		if de, ok := c.DateEnd(); ok {
			resp.DateEnd = de.Format(dayLayout)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}
