package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/queue"
)

type createdRequest struct {
	TenantID     int64
	Title        string
	ScheduledFor time.Time
}

type fakeStore struct {
	nextID  int64
	created []createdRequest

	due         []db.Request
	flipOK      bool
	flips       []int64
	dueEntries  []db.ScheduleEntry
	materialize map[int64]bool // entry id -> win the race
	entries     []db.ScheduleEntryInput
}

func (s *fakeStore) CreateRequest(_ context.Context, tenantID int64, title string, scheduledFor time.Time) (int64, error) {
	s.nextID++
	s.created = append(s.created, createdRequest{TenantID: tenantID, Title: title, ScheduledFor: scheduledFor})
	return s.nextID, nil
}

func (s *fakeStore) DueRequests(_ context.Context, _ time.Time, _ int) ([]db.Request, error) {
	return s.due, nil
}

func (s *fakeStore) UpdateRequestStatusFrom(_ context.Context, id int64, _ string, _ ...string) (bool, error) {
	s.flips = append(s.flips, id)
	return s.flipOK, nil
}

func (s *fakeStore) CreateScheduleEntries(_ context.Context, _ int64, entries []db.ScheduleEntryInput) ([]int64, error) {
	s.entries = append(s.entries, entries...)
	ids := make([]int64, len(entries))
	for i := range entries {
		s.nextID++
		ids[i] = s.nextID
	}
	return ids, nil
}

func (s *fakeStore) DueScheduleEntries(_ context.Context, _ time.Time, _ int) ([]db.ScheduleEntry, error) {
	return s.dueEntries, nil
}

func (s *fakeStore) MarkScheduleMaterialized(_ context.Context, id int64) (bool, error) {
	if s.materialize == nil {
		return true, nil
	}
	return s.materialize[id], nil
}

func fixedNow() time.Time {
	return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
}

func testScheduler(store *fakeStore) (*Scheduler, *queue.Memory) {
	q := queue.NewMemory(3)
	return New(store, q, Options{Now: fixedNow}), q
}

func TestTick_PromotesDueRequest(t *testing.T) {
	store := &fakeStore{
		flipOK: true,
		due: []db.Request{
			{ID: 11, TenantID: 7, Title: "Due post", Status: db.StatusPending},
		},
	}
	s, q := testScheduler(store)

	require.NoError(t, s.Tick(context.Background()))

	// Exactly one job, matching the promoted record.
	require.Equal(t, 1, q.Pending())
	var jobs []queue.Job
	err := q.Drain(context.Background(), func(_ context.Context, job queue.Job) error {
		jobs = append(jobs, job)
		return nil
	}, time.Second)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(11), jobs[0].RequestID)
	assert.Equal(t, int64(7), jobs[0].TenantID)
	assert.Equal(t, "Due post", jobs[0].Title)

	assert.Equal(t, []int64{11}, store.flips)
}

func TestTick_LostFlipRaceContinues(t *testing.T) {
	store := &fakeStore{
		flipOK: false, // someone else moved the record first
		due: []db.Request{
			{ID: 11, TenantID: 7, Title: "a", Status: db.StatusPending},
			{ID: 12, TenantID: 7, Title: "b", Status: db.StatusPending},
		},
	}
	s, q := testScheduler(store)

	require.NoError(t, s.Tick(context.Background()))
	// Jobs were still enqueued; the worker's claim gate absorbs them.
	assert.Equal(t, 2, q.Pending())
	assert.Equal(t, []int64{11, 12}, store.flips)
}

func TestTick_MaterializesDueScheduleEntries(t *testing.T) {
	store := &fakeStore{
		flipOK: true,
		dueEntries: []db.ScheduleEntry{
			{ID: 1, TenantID: 7, Title: "Digest 1", ScheduledFor: fixedNow().Add(-time.Hour)},
			{ID: 2, TenantID: 7, Title: "Digest 2", ScheduledFor: fixedNow().Add(-time.Minute)},
		},
		materialize: map[int64]bool{1: true, 2: false}, // entry 2 lost to another scheduler
	}
	s, _ := testScheduler(store)

	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, store.created, 1)
	assert.Equal(t, "Digest 1", store.created[0].Title)
	assert.Equal(t, int64(7), store.created[0].TenantID)
}

func TestAddContent(t *testing.T) {
	store := &fakeStore{}
	s, _ := testScheduler(store)

	when := fixedNow().Add(48 * time.Hour)
	id, err := s.AddContent(context.Background(), 7, "Future post", when)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.Len(t, store.created, 1)
	assert.Equal(t, when, store.created[0].ScheduledFor)

	_, err = s.AddContent(context.Background(), 7, "", when)
	assert.Error(t, err)
}

func TestBulkAddContent_SpacesSlots(t *testing.T) {
	store := &fakeStore{}
	s, _ := testScheduler(store)

	start := fixedNow()
	ids, err := s.BulkAddContent(context.Background(), 7, []string{"a", "b", "c"}, start, 6)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	require.Len(t, store.created, 3)
	assert.Equal(t, start, store.created[0].ScheduledFor)
	assert.Equal(t, start.Add(6*time.Hour), store.created[1].ScheduledFor)
	assert.Equal(t, start.Add(12*time.Hour), store.created[2].ScheduledFor)
}

func TestAddRecurring_StoresEntries(t *testing.T) {
	store := &fakeStore{}
	s, _ := testScheduler(store)

	ids, err := s.AddRecurring(context.Background(), 7, RecurrenceSpec{
		TitleTemplate: "Weekly {n}",
		Frequency:     FrequencyWeekly,
		Start:         fixedNow(),
		Count:         4,
	})
	require.NoError(t, err)
	assert.Len(t, ids, 4)
	require.Len(t, store.entries, 4)
	assert.Equal(t, "Weekly 1", store.entries[0].Title)
}

func TestEnqueueNow_CarriesResumeHint(t *testing.T) {
	store := &fakeStore{flipOK: true}
	s, q := testScheduler(store)

	req := &db.Request{ID: 5, TenantID: 7, Title: "Paused piece"}
	jobID, err := s.EnqueueNow(context.Background(), req, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	var jobs []queue.Job
	require.NoError(t, q.Drain(context.Background(), func(_ context.Context, job queue.Job) error {
		jobs = append(jobs, job)
		return nil
	}, time.Second))
	require.Len(t, jobs, 1)
	assert.Equal(t, 3, jobs[0].ResumeStep)
}
