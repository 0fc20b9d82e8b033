package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/leads"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
	"github.com/bankcrm/bankcrm/internal/users"
)

type memoryRepo struct {
	nextID int64
	tasks  map[int64]Task
}

func newMemoryRepo(seed ...Task) *memoryRepo {
	repo := &memoryRepo{tasks: map[int64]Task{}}
	for _, task := range seed {
		repo.nextID++
		task.ID = repo.nextID
		repo.tasks[task.ID] = task
	}
	return repo
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Task, error) {
	var out []Task
	for id := int64(1); id <= m.nextID; id++ {
		task, ok := m.tasks[id]
		if !ok || (filter.OwnerID > 0 && task.OwnerID != filter.OwnerID) || (!filter.IncludeDone && task.Done) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, task Task) (int64, error) {
	m.nextID++
	task.ID = m.nextID
	m.tasks[task.ID] = task
	return task.ID, nil
}

func (m *memoryRepo) Complete(_ context.Context, id int64) error {
	task := m.tasks[id]
	task.Done = true
	m.tasks[id] = task
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.tasks, id)
	return nil
}

func (m *memoryRepo) CountOpen(_ context.Context, ownerID int64) (int, error) {
	n := 0
	for _, task := range m.tasks {
		if !task.Done && (ownerID == 0 || task.OwnerID == ownerID) {
			n++
		}
	}
	return n, nil
}

type scheduled struct {
	taskID int64
	at     time.Time
}

type fakeScheduler struct {
	scheduled []scheduled
	cancelled []int64
	err       error
}

func (f *fakeScheduler) ScheduleReminder(_ context.Context, task Task, at time.Time) error {
	f.scheduled = append(f.scheduled, scheduled{task.ID, at})
	return f.err
}

func (f *fakeScheduler) CancelReminder(_ context.Context, taskID int64) error {
	f.cancelled = append(f.cancelled, taskID)
	return f.err
}

type leadLookup map[int64]int64

func (l leadLookup) Get(_ context.Context, actor rbac.User, id int64) (*leads.Lead, error) {
	owner, ok := l[id]
	if !ok || (actor.ID != "4" && actor.ID != "1" && owner != 0) {
		return nil, leads.ErrNotFound
	}
	return &leads.Lead{ID: id, AssignedTo: owner}, nil
}

var (
	fso        = rbac.User{ID: "1", Role: rbac.RoleFieldSalesOfficer}
	otherFSO   = rbac.User{ID: "2", Role: rbac.RoleFieldSalesOfficer}
	supervisor = rbac.User{ID: "4", Role: rbac.RoleSupervisor}
	clock      = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

type recordingAuditor struct {
	entries []shared.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

func (a *recordingAuditor) actions() []string {
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type directory map[int64]users.User

func (d directory) GetUser(_ context.Context, id int64) (users.User, error) {
	u, ok := d[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func newTestService(repo Repository, sched ReminderScheduler, opts ...Option) *Service {
	svc := NewService(repo, rbac.NewResolver(rbac.DefaultRegistry()), leadLookup{10: 1}, sched, Config{ReminderLead: time.Hour}, nil, opts...)
	svc.now = func() time.Time { return clock }
	return svc
}

func TestCreateSchedulesReminder(t *testing.T) {
	repo := newMemoryRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	task, err := svc.Create(context.Background(), fso, CreateTaskRequest{
		Title:  "  Call back ",
		DueAt:  clock.Add(3 * time.Hour),
		LeadID: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Call back", task.Title)
	assert.Equal(t, PriorityNormal, task.Priority)
	assert.Equal(t, int64(1), task.OwnerID)
	require.Len(t, sched.scheduled, 1)
	assert.Equal(t, scheduled{task.ID, clock.Add(2 * time.Hour)}, sched.scheduled[0])
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), fso, CreateTaskRequest{Priority: "urgent"})
	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "Title")
	assert.Contains(t, fields, "DueAt")
	assert.Equal(t, "Choose one of the listed options", fields["Priority"])

	_, err = svc.Create(context.Background(), fso, CreateTaskRequest{Title: "x", DueAt: clock, LeadID: 77})
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "Lead not found", fields["LeadID"])
}

func TestCreateForOthersNeedsTeamPermission(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	req := CreateTaskRequest{Title: "Visit", DueAt: clock.Add(time.Hour), OwnerID: 2}

	_, err := svc.Create(context.Background(), fso, req)
	assert.ErrorIs(t, err, ErrInvalidOwner)

	task, err := svc.Create(context.Background(), supervisor, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), task.OwnerID)
	assert.Equal(t, int64(4), task.CreatedBy)
}

func TestReminderAt(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	at, ok := svc.ReminderAt(Task{DueAt: clock.Add(5 * time.Hour)})
	assert.True(t, ok)
	assert.Equal(t, clock.Add(4*time.Hour), at)

	at, ok = svc.ReminderAt(Task{DueAt: clock.Add(10 * time.Minute)})
	assert.True(t, ok)
	assert.Equal(t, clock, at)

	_, ok = svc.ReminderAt(Task{DueAt: clock.Add(-time.Minute)})
	assert.False(t, ok)

	_, ok = svc.ReminderAt(Task{DueAt: clock.Add(5 * time.Hour), Done: true})
	assert.False(t, ok)
}

func TestPastDueTaskIsNotScheduled(t *testing.T) {
	sched := &fakeScheduler{}
	svc := newTestService(newMemoryRepo(), sched)

	_, err := svc.Create(context.Background(), fso, CreateTaskRequest{Title: "Late", DueAt: clock.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, sched.scheduled)
}

func TestSchedulerErrorsDoNotFailCreate(t *testing.T) {
	sched := &fakeScheduler{err: errors.New("redis down")}
	svc := newTestService(newMemoryRepo(), sched)

	_, err := svc.Create(context.Background(), fso, CreateTaskRequest{Title: "x", DueAt: clock.Add(2 * time.Hour)})
	assert.NoError(t, err)
}

func TestCompleteAndDelete(t *testing.T) {
	repo := newMemoryRepo(
		Task{Title: "mine", OwnerID: 1, DueAt: clock.Add(time.Hour)},
		Task{Title: "theirs", OwnerID: 2, DueAt: clock.Add(time.Hour)},
	)
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)
	ctx := context.Background()

	require.NoError(t, svc.Complete(ctx, fso, 1))
	assert.ErrorIs(t, svc.Complete(ctx, fso, 1), ErrAlreadyDone)
	assert.ErrorIs(t, svc.Complete(ctx, fso, 2), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, supervisor, 2))
	assert.Equal(t, []int64{1, 2}, sched.cancelled)
}

func TestListAndOpenCountScope(t *testing.T) {
	repo := newMemoryRepo(
		Task{Title: "a", OwnerID: 1},
		Task{Title: "b", OwnerID: 2},
		Task{Title: "c", OwnerID: 2, Done: true},
	)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	list, err := svc.List(ctx, otherFSO, ListFilter{OwnerID: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Title)

	n, err := svc.OpenCount(ctx, fso)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.OpenCount(ctx, supervisor)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOverdue(t *testing.T) {
	assert.True(t, Task{DueAt: clock.Add(-time.Minute)}.Overdue(clock))
	assert.False(t, Task{DueAt: clock.Add(-time.Minute), Done: true}.Overdue(clock))
	assert.False(t, Task{DueAt: clock.Add(time.Minute)}.Overdue(clock))
}

func TestTaskChangesAreAudited(t *testing.T) {
	auditor := &recordingAuditor{}
	svc := newTestService(newMemoryRepo(), nil, WithAuditor(auditor))
	ctx := context.Background()

	created, err := svc.Create(ctx, fso, CreateTaskRequest{Title: "Call", DueAt: clock.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, fso, created.ID))
	require.NoError(t, svc.Delete(ctx, fso, created.ID))

	assert.Equal(t, []string{"task.created", "task.completed", "task.deleted"}, auditor.actions())
	for _, e := range auditor.entries {
		assert.Equal(t, "task", e.Entity)
		assert.Equal(t, "1", e.EntityID)
		assert.Equal(t, "1", e.ActorID)
	}
	assert.Equal(t, int64(1), auditor.entries[0].Meta["owner_id"])
}

func TestFailedChangesAreNotAudited(t *testing.T) {
	auditor := &recordingAuditor{}
	svc := newTestService(newMemoryRepo(Task{Title: "theirs", OwnerID: 2}), nil, WithAuditor(auditor))

	assert.ErrorIs(t, svc.Delete(context.Background(), fso, 1), ErrNotFound)
	_, err := svc.Create(context.Background(), fso, CreateTaskRequest{Title: "x"})
	assert.Error(t, err)
	assert.Empty(t, auditor.entries)
}

func TestCreateRejectsUnknownOrInactiveOwner(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, WithUserDirectory(directory{
		2: {ID: 2, IsActive: true},
		3: {ID: 3, IsActive: false},
	}))
	ctx := context.Background()

	for _, owner := range []int64{3, 9999} {
		_, err := svc.Create(ctx, supervisor, CreateTaskRequest{Title: "Visit", DueAt: clock.Add(time.Hour), OwnerID: owner})
		var fields FieldErrors
		require.True(t, errors.As(err, &fields), "owner %d", owner)
		assert.Equal(t, "Choose an active team member", fields["OwnerID"])
	}
	assert.Empty(t, repo.tasks)

	task, err := svc.Create(ctx, supervisor, CreateTaskRequest{Title: "Visit", DueAt: clock.Add(time.Hour), OwnerID: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), task.OwnerID)

	// Scheduling for oneself never consults the directory.
	_, err = svc.Create(ctx, supervisor, CreateTaskRequest{Title: "Self", DueAt: clock.Add(time.Hour), OwnerID: 4})
	assert.NoError(t, err)
}
