package eventdesk

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// Filters
// ============================================================================

// Filters narrows an event listing. Zero values mean "no constraint".
// The same filter semantics apply server-side and against the local
// mirror, so the offline read path returns the same records the server
// would.
type Filters struct {
	// Title matches as a case-insensitive substring.
	Title string
	// Group matches the category label exactly, case-insensitively.
	Group string
	// Month (1-12) and Year constrain the event's calendar date
	// components. Month without Year matches that month across all years.
	Month int
	Year  int
	// SortBy is one of "title", "date" or "start_time". Any other value
	// leaves the order unchanged.
	SortBy string
}

// query renders the filters as API query parameters. Month and year
// combine into one date=YYYY-MM parameter; year alone becomes date=YYYY;
// month alone is passed as a standalone month parameter.
func (f Filters) query() map[string]string {
	q := map[string]string{}
	if f.Title != "" {
		q["title"] = f.Title
	}
	if f.Group != "" {
		q["group"] = f.Group
	}
	switch {
	case f.Year != 0 && f.Month != 0:
		q["date"] = fmt.Sprintf("%04d-%02d", f.Year, f.Month)
	case f.Year != 0:
		q["date"] = fmt.Sprintf("%04d", f.Year)
	case f.Month != 0:
		q["month"] = strconv.Itoa(f.Month)
	}
	if f.SortBy != "" {
		q["sortBy"] = f.SortBy
	}
	return q
}

// FiltersFromQuery parses API query parameters back into Filters, the
// inverse of query. Unparseable date or month values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	f := Filters{
		Title:  values.Get("title"),
		Group:  values.Get("group"),
		SortBy: values.Get("sortBy"),
	}
	if date := values.Get("date"); date != "" {
		year, month, _ := strings.Cut(date, "-")
		if y, err := strconv.Atoi(year); err == nil {
			f.Year = y
		}
		if m, err := strconv.Atoi(month); err == nil {
			f.Month = m
		}
	}
	if month := values.Get("month"); month != "" {
		if m, err := strconv.Atoi(month); err == nil {
			f.Month = m
		}
	}
	return f
}

// Match reports whether the event passes the filters. Events with an
// unparseable date fail any month/year constraint.
func (f Filters) Match(ev *Event) bool {
	if f.Title != "" && !strings.Contains(strings.ToLower(ev.Title), strings.ToLower(f.Title)) {
		return false
	}
	if f.Group != "" && !strings.EqualFold(ev.Group, f.Group) {
		return false
	}
	if f.Month != 0 || f.Year != 0 {
		d, err := time.Parse("2006-01-02", ev.Date)
		if err != nil {
			return false
		}
		if f.Month != 0 && int(d.Month()) != f.Month {
			return false
		}
		if f.Year != 0 && d.Year() != f.Year {
			return false
		}
	}
	return true
}

// FilterEvents returns the events passing the filters, preserving order.
func FilterEvents(events []Event, f Filters) []Event {
	filtered := make([]Event, 0, len(events))
	for i := range events {
		if f.Match(&events[i]) {
			filtered = append(filtered, events[i])
		}
	}
	return filtered
}

// ============================================================================
// Sorting
// ============================================================================

// SortEvents sorts in place by the given key: "title" lexicographically,
// "date" chronologically, "start_time" by minutes since midnight. The
// sort is stable; an unrecognized key is a no-op.
func SortEvents(events []Event, sortBy string) {
	switch sortBy {
	case "title":
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Title < events[j].Title
		})
	case "date":
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date < events[j].Date
		})
	case "start_time":
		sort.SliceStable(events, func(i, j int) bool {
			return minutesOfDay(events[i].StartTime) < minutesOfDay(events[j].StartTime)
		})
	}
}

// minutesOfDay converts an HH:MM wall-clock string to minutes since
// midnight. Malformed input yields 0.
func minutesOfDay(hhmm string) int {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok {
		return 0
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return hours*60 + minutes
}

// ============================================================================
// Pagination
// ============================================================================

// Paginate slices one 1-indexed page out of the full result set and
// fills in the metadata the API returns for server-side pagination.
func Paginate(events []Event, page, limit int) *EventPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	totalItems := len(events)
	totalPages := (totalItems + limit - 1) / limit

	offset := (page - 1) * limit
	end := offset + limit
	if offset > totalItems {
		offset = totalItems
	}
	if end > totalItems {
		end = totalItems
	}

	return &EventPage{
		Data: append([]Event{}, events[offset:end]...),
		Metadata: PageMetadata{
			CurrentPage:     page,
			TotalPages:      totalPages,
			TotalItems:      totalItems,
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
			Limit:           limit,
		},
	}
}
