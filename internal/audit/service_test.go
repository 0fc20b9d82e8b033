package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows  []TimelineRow
	err   error
	calls []Query
}

func (s *stubTimelineRepo) Timeline(_ context.Context, q Query) ([]TimelineRow, error) {
	s.calls = append(s.calls, q)
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit > 0 && len(s.rows) > q.Limit {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func entries(n int) []TimelineRow {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Hour), Actor: "5", Action: "lead.assign", Entity: "lead", EntityID: "1"}
	}
	return rows
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: entries(3)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2, Actor: " 5 "})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	require.Len(t, repo.calls, 1)
	assert.Equal(t, 3, repo.calls[0].Limit)
	assert.Zero(t, repo.calls[0].Offset)
	assert.Equal(t, "5", repo.calls[0].Actor)
}

func TestServiceTimelineLastPage(t *testing.T) {
	repo := &stubTimelineRepo{rows: entries(1)}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)

	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.PrevPage)
	assert.Equal(t, 20, repo.calls[0].Offset)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, result.Paging.PageSize)
	assert.Equal(t, 1, result.Paging.Page)

	result, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, result.Paging.PageSize)
}

func TestServiceExportReturnsAllRows(t *testing.T) {
	repo := &stubTimelineRepo{rows: entries(30)}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{Entity: "lead"})
	require.NoError(t, err)

	assert.Len(t, rows, 30)
	assert.Equal(t, maxExportRows, repo.calls[0].Limit)
	assert.Zero(t, repo.calls[0].Offset)
}

func TestServiceErrors(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, errNoRepository)

	boom := errors.New("boom")
	_, err = NewService(&stubTimelineRepo{err: boom}).Export(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, boom)
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{
		{At: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), Actor: "5", Action: "lead.assign", Entity: "lead", EntityID: "12", Meta: map[string]any{"to": "2"}},
		{Actor: "1", Action: "lead.create", Entity: "lead", EntityID: "13"},
	}
	out, err := WriteCSV(rows)
	require.NoError(t, err)

	want := "at,actor,action,entity,entity_id,meta\n" +
		"2026-03-10T10:00:00Z,5,lead.assign,lead,12,\"{\"\"to\"\":\"\"2\"\"}\"\n" +
		",1,lead.create,lead,13,\n"
	assert.Equal(t, want, string(out))
}

func TestTimelineSQL(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sql, args := timelineSQL(Query{
		TimelineFilters: TimelineFilters{From: from, Actor: "5", Action: "lead.assign"},
		Offset:          20,
		Limit:           21,
	})

	assert.Equal(t, `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs`+
		` WHERE occurred_at >= $1 AND actor_id = $2 AND action = $3`+
		` ORDER BY occurred_at DESC, id DESC LIMIT $4 OFFSET $5`, sql)
	assert.Equal(t, []any{from, "5", "lead.assign", 21, 20}, args)

	sql, args = timelineSQL(Query{})
	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "LIMIT")
	assert.Empty(t, args)
}
