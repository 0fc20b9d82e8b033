package audit

import (
	"context"
	"errors"
	"strings"
)

// Timeline page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

const (
	// maxExportRows bounds a single CSV export.
	maxExportRows = 10000
)

// Query is the repository-level form of TimelineFilters. A zero Limit means
// no limit.
type Query struct {
	TimelineFilters
	Offset int
	Limit  int
}

// Repository reads the audit trail.
type Repository interface {
	Timeline(ctx context.Context, q Query) ([]TimelineRow, error)
}

// Result pairs timeline rows with paging metadata.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

// Service serves the audit trail to managers.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var errNoRepository = errors.New("audit: repository not configured")

// Timeline returns one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errNoRepository
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	filters.Page, filters.PageSize = page, pageSize
	rows, err := s.repo.Timeline(ctx, Query{
		TimelineFilters: trimFilters(filters),
		Offset:          (page - 1) * pageSize,
		Limit:           pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching entry up to the export cap.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errNoRepository
	}
	return s.repo.Timeline(ctx, Query{TimelineFilters: trimFilters(filters), Limit: maxExportRows})
}

func trimFilters(f TimelineFilters) TimelineFilters {
	f.Actor = strings.TrimSpace(f.Actor)
	f.Entity = strings.TrimSpace(f.Entity)
	f.Action = strings.TrimSpace(f.Action)
	return f
}
