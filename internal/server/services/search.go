package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/requestctx"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/cacherefresh"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/vault"
)

// SearchResult is the outcome of a validated search.
type SearchResult struct {
	Debtors []*models.Debtor

	// Failed counts records that matched but could not be decrypted.
	Failed int

	// Refresh describes the cache population this search triggered, or
	// would have triggered on a cache hit.
	Refresh cacherefresh.Context

	// Cached is true when the result IDs came from the cache.
	Cached bool
}

// SearchService validates filters, serves results from the ID cache when it
// can and populates it otherwise.
type SearchService struct {
	vault     DebtorVault
	cache     *cacherefresh.Manager
	validator filters.Validator
	log       logging.Logger
}

func NewSearchService(v DebtorVault, cache *cacherefresh.Manager, validator filters.Validator, log logging.Logger) *SearchService {
	if log == nil {
		log = logging.Nop{}
	}
	return &SearchService{vault: v, cache: cache, validator: validator, log: log.With("service", "search")}
}

// Search runs a search for raw request values under profile. Invalid input
// comes back as *filters.ValidationError and is not logged as a failure.
// An empty filter set on ProfileSearch searches the default window.
func (s *SearchService) Search(ctx context.Context, profile filters.Profile, raw url.Values) (*SearchResult, error) {
	ctx = requestctx.EnsureRequestID(ctx)
	now := requestctx.Now(ctx)

	set, err := filters.Parse(raw)
	if err != nil {
		return nil, err
	}
	if profile == filters.ProfileSearch && set.IsEmpty() {
		start, end := cacherefresh.DefaultWindow(now)
		set.DateStart, set.DateEnd = &start, &end
	}

	valid, err := s.validator.Validate(set, profile)
	if err != nil {
		s.log.Debug(ctx, "search rejected", "profile", profile.String())
		return nil, err
	}

	trigger := cacherefresh.FromFilters(now, valid)
	scope := s.vault.ScopeKey(valid)

	if ids, ok := s.cache.Cached(scope); ok {
		found, tally, err := s.vault.FindManyDecrypted(ctx, ids)
		if err != nil {
			return nil, err
		}
		s.log.Debug(ctx, "search served from cache", "scope", scope, "records", len(found))
		return &SearchResult{Debtors: found, Failed: tally.Count, Refresh: trigger, Cached: true}, nil
	}

	var (
		found []*models.Debtor
		tally *vault.DecryptTally
	)
	_, err = s.cache.Refresh(ctx, trigger, scope, func(ctx context.Context) ([]string, error) {
		var err error
		found, tally, err = s.vault.Search(ctx, valid)
		if err != nil {
			return nil, err
		}
		return debtorIDs(found), nil
	})
	switch {
	case errors.Is(err, cacherefresh.ErrRefreshInFlight), errors.Is(err, cacherefresh.ErrSuperseded):
		found, tally, err = s.vault.Search(ctx, valid)
		if err != nil {
			return nil, err
		}
	case err != nil:
		s.log.Error(ctx, "search failed", "scope", scope, "error", err)
		return nil, err
	}

	return &SearchResult{Debtors: found, Failed: tally.Count, Refresh: trigger}, nil
}

// TriggerRefresh builds the refresh context for kind and runs it. start and
// end are required for KindFiltered; KindScheduled falls back to the
// default window ending today. KindFull also re-warms the default window.
// It returns the context it acted on together with any refresh error,
// ErrRefreshInFlight included.
func (s *SearchService) TriggerRefresh(ctx context.Context, kind cacherefresh.Kind, start, end *time.Time) (cacherefresh.Context, error) {
	ctx = requestctx.EnsureRequestID(ctx)
	now := requestctx.Now(ctx)

	switch kind {
	case cacherefresh.KindFull:
		trigger := cacherefresh.FullRefresh()
		_, err := s.cache.Refresh(ctx, trigger, cacherefresh.FullScope, func(ctx context.Context) ([]string, error) {
			all, tally, err := s.vault.FindAllDecrypted(ctx)
			if err != nil {
				return nil, err
			}
			if tally.Count > 0 {
				s.log.Warn(ctx, "full refresh skipped unreadable records", "count", tally.Count)
			}
			return debtorIDs(all), nil
		})
		if err != nil {
			return trigger, err
		}
		// The full refresh dropped every scope; warm the one empty searches read.
		ds, de := cacherefresh.DefaultWindow(now)
		err = s.refreshWindow(ctx, cacherefresh.FilteredSearch(now, &ds, &de), &ds, &de)
		if err != nil && !errors.Is(err, cacherefresh.ErrRefreshInFlight) {
			return trigger, err
		}
		return trigger, nil

	case cacherefresh.KindScheduled:
		if start == nil || end == nil {
			ds, de := cacherefresh.DefaultWindow(now)
			start, end = &ds, &de
		}
		trigger := cacherefresh.ScheduledRefresh(*start, *end)
		return trigger, s.refreshWindow(ctx, trigger, start, end)

	case cacherefresh.KindFiltered:
		if start == nil || end == nil {
			return cacherefresh.Context{}, fmt.Errorf("filtered refresh: %w", filters.ErrValidation)
		}
		trigger := cacherefresh.FilteredSearch(now, start, end)
		return trigger, s.refreshWindow(ctx, trigger, start, end)

	default:
		return cacherefresh.Context{}, fmt.Errorf("unknown refresh kind %s", kind)
	}
}

// refreshWindow repopulates the scope a plain date-range search would use,
// so later searches for the same window hit the cache.
func (s *SearchService) refreshWindow(ctx context.Context, trigger cacherefresh.Context, start, end *time.Time) error {
	valid, err := s.validator.Validate(filters.SearchFilterSet{DateStart: start, DateEnd: end}, filters.ProfileSearch)
	if err != nil {
		return err
	}
	_, err = s.cache.Refresh(ctx, trigger, s.vault.ScopeKey(valid), func(ctx context.Context) ([]string, error) {
		found, _, err := s.vault.Search(ctx, valid)
		if err != nil {
			return nil, err
		}
		return debtorIDs(found), nil
	})
	return err
}

func debtorIDs(ds []*models.Debtor) []string {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}
