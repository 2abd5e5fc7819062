package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

// memStreakRepo — детерминированная реализация StreakRepository в памяти
// для тестов алгоритмов движка.
type memStreakRepo struct {
	nextID  int64
	streaks map[int64]*models.Streak
}

func newMemStreakRepo() *memStreakRepo {
	return &memStreakRepo{nextID: 1, streaks: make(map[int64]*models.Streak)}
}

func (r *memStreakRepo) seed(habit *models.Habit, start, end time.Time) *models.Streak {
	st := models.Streak{HabitID: habit.ID, OwnerUID: habit.OwnerUID, Start: start, End: end, Version: 1}
	st.RecalcLength()
	st.ID = r.nextID
	r.nextID++
	r.streaks[st.ID] = &st
	return &st
}

func (r *memStreakRepo) FindStreakByEnd(_ context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error) {
	for _, st := range r.streaks {
		if st.HabitID == habitID && st.End.Equal(day) {
			return copyStreak(st), nil
		}
	}
	return nil, models.ErrStreakNotFound
}

func (r *memStreakRepo) FindStreakByStart(_ context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error) {
	for _, st := range r.streaks {
		if st.HabitID == habitID && st.Start.Equal(day) {
			return copyStreak(st), nil
		}
	}
	return nil, models.ErrStreakNotFound
}

func (r *memStreakRepo) FindStreakContaining(_ context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error) {
	var found []*models.Streak
	for _, st := range r.streaks {
		if st.HabitID == habitID && st.Contains(day) {
			found = append(found, st)
		}
	}
	switch len(found) {
	case 0:
		return nil, models.ErrStreakNotFound
	case 1:
		return copyStreak(found[0]), nil
	default:
		return nil, models.ErrCorruptState
	}
}

func (r *memStreakRepo) ListStreaksOverlapping(_ context.Context, habitID uuid.UUID, a, b time.Time) ([]*models.Streak, error) {
	var result []*models.Streak
	for _, st := range r.streaks {
		if st.HabitID == habitID && !st.Start.After(b) && !st.End.Before(a) {
			result = append(result, copyStreak(st))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

func (r *memStreakRepo) ListLongestStreaks(_ context.Context, habitID uuid.UUID, k int) ([]*models.Streak, error) {
	result := r.all(habitID)
	sort.Slice(result, func(i, j int) bool {
		if result[i].Length != result[j].Length {
			return result[i].Length > result[j].Length
		}
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

func (r *memStreakRepo) ListRecentStreaks(_ context.Context, habitID uuid.UUID, k int) ([]*models.Streak, error) {
	result := r.all(habitID)
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.After(result[j].Start)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

func (r *memStreakRepo) CreateStreak(_ context.Context, streak models.Streak) (int64, error) {
	streak.ID = r.nextID
	streak.Version = 1
	r.nextID++
	r.streaks[streak.ID] = &streak
	return streak.ID, nil
}

func (r *memStreakRepo) UpdateStreak(_ context.Context, streak *models.Streak) error {
	existing, ok := r.streaks[streak.ID]
	if !ok || existing.Version != streak.Version {
		return models.ErrConcurrentModification
	}
	stored := *streak
	stored.Version++
	r.streaks[stored.ID] = &stored
	streak.Version++
	return nil
}

func (r *memStreakRepo) DeleteStreak(_ context.Context, id int64, version int) error {
	existing, ok := r.streaks[id]
	if !ok || existing.Version != version {
		return models.ErrConcurrentModification
	}
	delete(r.streaks, id)
	return nil
}

func (r *memStreakRepo) MergeStreaks(ctx context.Context, left *models.Streak, right *models.Streak) error {
	if err := r.DeleteStreak(ctx, right.ID, right.Version); err != nil {
		return err
	}
	return r.UpdateStreak(ctx, left)
}

func (r *memStreakRepo) SplitStreak(ctx context.Context, left *models.Streak, right models.Streak) (int64, error) {
	if err := r.UpdateStreak(ctx, left); err != nil {
		return 0, err
	}
	return r.CreateStreak(ctx, right)
}

func (r *memStreakRepo) all(habitID uuid.UUID) []*models.Streak {
	var result []*models.Streak
	for _, st := range r.streaks {
		if st.HabitID == habitID {
			result = append(result, copyStreak(st))
		}
	}
	return result
}

// snapshot возвращает серии привычки по возрастанию даты начала.
func (r *memStreakRepo) snapshot(habitID uuid.UUID) []*models.Streak {
	result := r.all(habitID)
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result
}

func copyStreak(st *models.Streak) *models.Streak {
	c := *st
	return &c
}

type cacheStub struct{}

func (cacheStub) Get(string, any) (bool, error)        { return false, nil }
func (cacheStub) Set(string, any, time.Duration) error { return nil }
func (cacheStub) Invalidate(string) error              { return nil }

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// day переводит номер дня теста в дату: day(1) = 2025-06-01.
func day(n int) time.Time {
	return base.AddDate(0, 0, n-1)
}

func newTestHabit(createdOn time.Time) *models.Habit {
	return &models.Habit{
		ID:        uuid.New(),
		OwnerUID:  uuid.New().String(),
		Name:      "Read",
		Slug:      "read-0",
		Active:    true,
		Points:    3,
		CreatedOn: createdOn,
	}
}

// checkInvariants проверяет, что серии попарно не пересекаются
// и не соприкасаются, а длины соответствуют границам.
func checkInvariants(t *testing.T, repo *memStreakRepo, habitID uuid.UUID) {
	t.Helper()
	streaks := repo.snapshot(habitID)
	for i, st := range streaks {
		assert.False(t, st.End.Before(st.Start), "start must not exceed end")
		assert.Equal(t, int(st.End.Sub(st.Start).Hours()/24)+1, st.Length, "length must match bounds")
		if i > 0 {
			prev := streaks[i-1]
			assert.True(t, st.Start.After(prev.End.AddDate(0, 0, 1)),
				"streaks %v and %v overlap or touch", prev, st)
		}
	}
}

func TestSetComplete_CreatesSingleton(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))

	require.NoError(t, svc.SetComplete(context.Background(), habit, day(5), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, day(5), streaks[0].Start)
	assert.Equal(t, day(5), streaks[0].End)
	assert.Equal(t, 1, streaks[0].Length)
	checkInvariants(t, repo, habit.ID)
}

func TestSetComplete_ExtendsLeftNeighbor(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(3))

	require.NoError(t, svc.SetComplete(context.Background(), habit, day(4), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, day(1), streaks[0].Start)
	assert.Equal(t, day(4), streaks[0].End)
	assert.Equal(t, 4, streaks[0].Length)
	checkInvariants(t, repo, habit.ID)
}

func TestSetComplete_ExtendsRightNeighbor(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(5), day(7))

	require.NoError(t, svc.SetComplete(context.Background(), habit, day(4), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, day(4), streaks[0].Start)
	assert.Equal(t, day(7), streaks[0].End)
	checkInvariants(t, repo, habit.ID)
}

func TestSetComplete_MergesBridgedStreaks(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	left := repo.seed(habit, day(1), day(3))
	repo.seed(habit, day(5), day(7))

	require.NoError(t, svc.SetComplete(context.Background(), habit, day(4), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	// Выживает левая серия.
	assert.Equal(t, left.ID, streaks[0].ID)
	assert.Equal(t, day(1), streaks[0].Start)
	assert.Equal(t, day(7), streaks[0].End)
	assert.Equal(t, 7, streaks[0].Length)
	checkInvariants(t, repo, habit.ID)
}

func TestSetComplete_AlreadyCompleteIsNoop(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(7))

	require.NoError(t, svc.SetComplete(context.Background(), habit, day(4), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, day(1), streaks[0].Start)
	assert.Equal(t, day(7), streaks[0].End)
}

func TestSetIncomplete_SplitsStreak(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(7))

	require.NoError(t, svc.SetIncomplete(context.Background(), habit, day(4), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 2)
	assert.Equal(t, day(1), streaks[0].Start)
	assert.Equal(t, day(3), streaks[0].End)
	assert.Equal(t, 3, streaks[0].Length)
	assert.Equal(t, day(5), streaks[1].Start)
	assert.Equal(t, day(7), streaks[1].End)
	assert.Equal(t, 3, streaks[1].Length)
	checkInvariants(t, repo, habit.ID)
}

func TestSetIncomplete_ShrinksFromEdges(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(7))

	require.NoError(t, svc.SetIncomplete(context.Background(), habit, day(1), day(30)))
	require.NoError(t, svc.SetIncomplete(context.Background(), habit, day(7), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, day(2), streaks[0].Start)
	assert.Equal(t, day(6), streaks[0].End)
	assert.Equal(t, 5, streaks[0].Length)
	checkInvariants(t, repo, habit.ID)
}

func TestSetIncomplete_DeletesSingleton(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(5), day(5))

	require.NoError(t, svc.SetIncomplete(context.Background(), habit, day(5), day(30)))

	assert.Empty(t, repo.snapshot(habit.ID))
}

func TestSetIncomplete_MissingDayIsNoop(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(3))

	require.NoError(t, svc.SetIncomplete(context.Background(), habit, day(10), day(30)))

	require.Len(t, repo.snapshot(habit.ID), 1)
}

func TestToggleComplete_RoundTrip(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	ctx := context.Background()

	require.NoError(t, svc.ToggleComplete(ctx, habit, day(5), day(30)))
	complete, err := svc.IsComplete(ctx, habit, day(5))
	require.NoError(t, err)
	assert.True(t, complete)

	require.NoError(t, svc.ToggleComplete(ctx, habit, day(5), day(30)))
	complete, err = svc.IsComplete(ctx, habit, day(5))
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestToggleComplete_TwiceRestoresState(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	ctx := context.Background()
	repo.seed(habit, day(1), day(3))
	repo.seed(habit, day(5), day(7))

	before := repo.snapshot(habit.ID)
	require.NoError(t, svc.ToggleComplete(ctx, habit, day(4), day(30)))
	require.NoError(t, svc.ToggleComplete(ctx, habit, day(4), day(30)))
	after := repo.snapshot(habit.ID)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Start, after[i].Start)
		assert.Equal(t, before[i].End, after[i].End)
		assert.Equal(t, before[i].Length, after[i].Length)
	}
	checkInvariants(t, repo, habit.ID)
}

func TestToggleComplete_InactiveDaysAreImmutable(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(10))
	ctx := context.Background()

	// До даты создания привычки.
	require.NoError(t, svc.ToggleComplete(ctx, habit, day(5), day(30)))
	// В будущем.
	require.NoError(t, svc.ToggleComplete(ctx, habit, day(31), day(30)))

	assert.Empty(t, repo.snapshot(habit.ID))
}

func TestToggleComplete_ManyTogglesKeepInvariants(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	ctx := context.Background()

	for _, n := range []int{3, 5, 4, 7, 6, 5, 2, 4, 8, 1, 2, 3} {
		require.NoError(t, svc.ToggleComplete(ctx, habit, day(n), day(30)))
		checkInvariants(t, repo, habit.ID)
	}
}

func TestIsComplete_WorksForInactiveDays(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	// Серия осталась от привычки, пересозданной позже: история читаема.
	habit := newTestHabit(day(10))
	repo.seed(habit, day(3), day(5))

	complete, err := svc.IsComplete(context.Background(), habit, day(4))
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestStatus_SingleDay(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(10))
	repo.seed(habit, day(12), day(13))
	ctx := context.Background()

	tests := []struct {
		name string
		day  time.Time
		want models.CompletionStatus
	}{
		{name: "before creation", day: day(5), want: models.StatusInactive},
		{name: "future day", day: day(31), want: models.StatusInactive},
		{name: "completed day", day: day(12), want: models.StatusComplete},
		{name: "incomplete day", day: day(15), want: models.StatusIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Status(ctx, habit, tt.day, day(30))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusRange_ProjectsStreaksAndCreationOverlay(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(10))
	repo.seed(habit, day(12), day(13))

	statuses, err := svc.StatusRange(context.Background(), habit, day(5), day(15))
	require.NoError(t, err)
	require.Len(t, statuses, 11)

	want := []models.CompletionStatus{
		models.StatusInactive, models.StatusInactive, models.StatusInactive,
		models.StatusInactive, models.StatusInactive,
		models.StatusIncomplete, models.StatusIncomplete,
		models.StatusComplete, models.StatusComplete,
		models.StatusIncomplete, models.StatusIncomplete,
	}
	assert.Equal(t, want, statuses)
}

func TestStatusRange_ClipsStreaksToRange(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(20))

	statuses, err := svc.StatusRange(context.Background(), habit, day(5), day(7))
	require.NoError(t, err)
	assert.Equal(t, []models.CompletionStatus{
		models.StatusComplete, models.StatusComplete, models.StatusComplete,
	}, statuses)
}

func TestStatusRange_InvalidRange(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))

	_, err := svc.StatusRange(context.Background(), habit, day(10), day(5))
	require.ErrorIs(t, err, models.ErrInvalidDateRange)
}

func TestLongestStreaks_RanksByLength(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(3))   // длина 3
	repo.seed(habit, day(5), day(5))   // длина 1
	repo.seed(habit, day(10), day(14)) // длина 5

	streaks, err := svc.LongestStreaks(context.Background(), habit, 1)
	require.NoError(t, err)
	require.Len(t, streaks, 1)
	assert.Equal(t, 5, streaks[0].Length)
}

func TestRecentStreaks_RanksByStart(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(3))
	repo.seed(habit, day(10), day(14))
	repo.seed(habit, day(5), day(5))

	streaks, err := svc.RecentStreaks(context.Background(), habit, 2)
	require.NoError(t, err)
	require.Len(t, streaks, 2)
	assert.Equal(t, day(10), streaks[0].Start)
	assert.Equal(t, day(5), streaks[1].Start)
}

func TestIsComplete_SurfacesCorruptState(t *testing.T) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	// Пересекающиеся серии имитируют повреждённые данные.
	repo.seed(habit, day(1), day(5))
	repo.seed(habit, day(3), day(7))

	_, err := svc.IsComplete(context.Background(), habit, day(4))
	require.ErrorIs(t, err, models.ErrCorruptState)
}

// conflictRepo подсовывает заданное число конфликтов версий перед успехом.
type conflictRepo struct {
	*memStreakRepo
	conflicts int
}

func (r *conflictRepo) UpdateStreak(ctx context.Context, streak *models.Streak) error {
	if r.conflicts > 0 {
		r.conflicts--
		return models.ErrConcurrentModification
	}
	return r.memStreakRepo.UpdateStreak(ctx, streak)
}

func TestToggleComplete_RetriesOnConflict(t *testing.T) {
	repo := &conflictRepo{memStreakRepo: newMemStreakRepo(), conflicts: 2}
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(3))

	require.NoError(t, svc.ToggleComplete(context.Background(), habit, day(4), day(30)))

	streaks := repo.snapshot(habit.ID)
	require.Len(t, streaks, 1)
	assert.Equal(t, day(4), streaks[0].End)
}

func TestToggleComplete_SurfacesConflictAfterRetries(t *testing.T) {
	repo := &conflictRepo{memStreakRepo: newMemStreakRepo(), conflicts: 10}
	svc := NewStreakService(repo, cacheStub{}, newNoopLogger())
	habit := newTestHabit(day(1))
	repo.seed(habit, day(1), day(3))

	err := svc.ToggleComplete(context.Background(), habit, day(4), day(30))
	require.ErrorIs(t, err, models.ErrConcurrentModification)
}
