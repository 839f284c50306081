// Package cacherefresh describes why a cache population was triggered and
// runs those populations through a Manager.
//
// A Context is built once per triggering event by one of the factory
// functions and is read-only afterwards.
package cacherefresh

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
)

// DefaultWindowDays is the length of the canonical search window ending today.
const DefaultWindowDays = 30

const (
	ReasonFull          = "Full refresh without filters"
	ReasonScheduled     = "Scheduled job refresh"
	ReasonFiltered      = "Filtered search"
	ReasonDefaultWindow = "Default 30-day period search"
)

// Kind is the trigger that produced a Context.
type Kind int

const (
	KindFull Kind = iota
	KindScheduled
	KindFiltered
)

func (k Kind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindScheduled:
		return "scheduled"
	case KindFiltered:
		return "filtered"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a trigger name back to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return KindFull, nil
	case "scheduled":
		return KindScheduled, nil
	case "filtered":
		return KindFiltered, nil
	default:
		return 0, fmt.Errorf("unknown refresh kind %q", s)
	}
}

// Context records the cause and scope of one cache refresh.
type Context struct {
	kind          Kind
	hasFilters    bool
	isFullRefresh bool
	dateStart     *time.Time
	dateEnd       *time.Time
	reason        string
}

// FullRefresh is the admin-triggered refresh of everything.
func FullRefresh() Context {
	return Context{
		kind:          KindFull,
		isFullRefresh: true,
		reason:        ReasonFull,
	}
}

// ScheduledRefresh is produced by the periodic job for the given window.
func ScheduledRefresh(start, end time.Time) Context {
	return Context{
		kind:          KindScheduled,
		isFullRefresh: true,
		dateStart:     &start,
		dateEnd:       &end,
		reason:        ReasonScheduled,
	}
}

// FilteredSearch is produced by a search. hasFilters is set when any of
// others is non-blank or when both dates are given and differ, at day
// granularity, from DefaultWindow(today).
func FilteredSearch(today time.Time, start, end *time.Time, others ...string) Context {
	hasNonDateFilters := false
	for _, v := range others {
		if strings.TrimSpace(v) != "" {
			hasNonDateFilters = true
			break
		}
	}

	hasCustomDateRange := false
	if start != nil && end != nil {
		ds, de := DefaultWindow(today)
		hasCustomDateRange = !sameDay(*start, ds) || !sameDay(*end, de)
	}

	c := Context{
		kind:       KindFiltered,
		hasFilters: hasNonDateFilters || hasCustomDateRange,
		dateStart:  copyTime(start),
		dateEnd:    copyTime(end),
		reason:     ReasonDefaultWindow,
	}
	if c.hasFilters {
		c.reason = ReasonFiltered
	}
	return c
}

// FromFilters builds the filtered-search context for a validated set. The
// document filter counts as a non-date filter but its value is not carried.
func FromFilters(today time.Time, v filters.Validated) Context {
	others := v.OtherValues()
	if v.HasDocument() {
		others = append(others, "document")
	}
	start, end := v.DateRange()
	return FilteredSearch(today, start, end, others...)
}

// DefaultWindow returns [today-30d, today] truncated to days, in UTC.
func DefaultWindow(today time.Time) (start, end time.Time) {
	end = truncateDay(today)
	return end.AddDate(0, 0, -DefaultWindowDays), end
}

func (c Context) Kind() Kind          { return c.kind }
func (c Context) HasFilters() bool    { return c.hasFilters }
func (c Context) IsFullRefresh() bool { return c.isFullRefresh }
func (c Context) Reason() string      { return c.reason }

// DateStart returns the window start, if the context has one.
func (c Context) DateStart() (time.Time, bool) {
	if c.dateStart == nil {
		return time.Time{}, false
	}
	return *c.dateStart, true
}

// DateEnd returns the window end, if the context has one.
func (c Context) DateEnd() (time.Time, bool) {
	if c.dateEnd == nil {
		return time.Time{}, false
	}
	return *c.dateEnd, true
}

// LogAttrs renders the context as key-value pairs for a Logger.
func (c Context) LogAttrs() []any {
	attrs := []any{
		"kind", c.kind.String(),
		"full", c.isFullRefresh,
		"has_filters", c.hasFilters,
		"reason", c.reason,
	}
	if c.dateStart != nil {
		attrs = append(attrs, "date_start", c.dateStart.Format(time.DateOnly))
	}
	if c.dateEnd != nil {
		attrs = append(attrs, "date_end", c.dateEnd.Format(time.DateOnly))
	}
	return attrs
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
