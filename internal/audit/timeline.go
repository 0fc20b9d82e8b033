package audit

import "time"

// TimelineFilters narrows the audit trail.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit_logs entry as shown to managers.
type TimelineRow struct {
	At       time.Time
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// PagingInfo describes the current page of a timeline.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// FiltersViewModel echoes the active filters back to the template.
type FiltersViewModel struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
}

// ViewModel feeds pages/audit.html.
type ViewModel struct {
	Filters FiltersViewModel
	Rows    []TimelineRow
	Paging  PagingInfo
}
