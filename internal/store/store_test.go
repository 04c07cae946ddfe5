package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/planhaus/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "planhaus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProject(t *testing.T, s *Store) (model.User, model.WeddingProject) {
	t.Helper()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, "alex@example.com", "Alex", "hunter22")
	require.NoError(t, err)
	p := model.WeddingProject{Name: "Alex & Sam", BudgetTotal: "30000", Venue: "Lakeside"}
	require.NoError(t, s.CreateProject(ctx, &p, u.ID))
	return u, p
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "planhaus.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
}

func TestUsersAndAuthentication(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Jo@Example.com", "Jo", "secret-pass")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "jo@example.com", "Other", "x")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.Authenticate(ctx, "jo@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "jo@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "nobody@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	byEmail, err := s.GetUserByEmail(ctx, "JO@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Jo", byEmail.Name)

	_, err = s.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, _ := seedProject(t, s)

	sess, err := s.CreateSession(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, sess.ID, "ses_")
	assert.Contains(t, sess.RefreshToken, "ref_")

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.False(t, got.Expired(time.Now()))

	rotated, err := s.RefreshSession(ctx, sess.RefreshToken, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, rotated.ID)

	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RefreshSession(ctx, sess.RefreshToken, time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteSession(ctx, rotated.ID))
	_, err = s.GetSession(ctx, rotated.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeExpiredSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, _ := seedProject(t, s)

	_, err := s.CreateSession(ctx, u.ID, -time.Minute)
	require.NoError(t, err)
	live, err := s.CreateSession(ctx, u.ID, time.Hour)
	require.NoError(t, err)

	n, err := s.PurgeExpiredSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetSession(ctx, live.ID)
	assert.NoError(t, err)
}

func TestProjectsAndMembers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, p := seedProject(t, s)

	wedding := time.Date(2027, 6, 12, 16, 0, 0, 0, time.UTC)
	p.WeddingDate = &wedding
	p.GuestCount = 120
	require.NoError(t, s.UpdateProject(ctx, &p))
	assert.Equal(t, 2, p.Version)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WeddingDate)
	assert.True(t, wedding.Equal(*got.WeddingDate))
	assert.Equal(t, 120, got.GuestCount)

	stale := got
	stale.Version = 1
	assert.ErrorIs(t, s.UpdateProject(ctx, &stale), ErrConflict)

	missing := model.WeddingProject{ID: uuid.New(), Version: 1}
	assert.ErrorIs(t, s.UpdateProject(ctx, &missing), ErrNotFound)

	projects, err := s.ListProjectsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)

	role, err := s.MemberRole(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, role)

	friend, err := s.CreateUser(ctx, "sam@example.com", "Sam", "pw")
	require.NoError(t, err)
	_, err = s.MemberRole(ctx, p.ID, friend.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AddMember(ctx, p.ID, friend.ID, model.RoleEditor))
	members, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestTaskCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, p := seedProject(t, s)

	due := time.Now().Add(48 * time.Hour).UTC()
	task := model.Task{ProjectID: p.ID, Title: "Book florist", Priority: model.PriorityHigh, Status: model.TaskPending, DueDate: &due}
	require.NoError(t, s.CreateTask(ctx, &task))
	require.NoError(t, s.CreateTask(ctx, &model.Task{ProjectID: p.ID, Title: "Send invites", Priority: model.PriorityMedium, Status: model.TaskPending}))

	tasks, err := s.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Book florist", tasks[0].Title, "tasks with due dates sort first")

	done := time.Now().UTC()
	task.Status = model.TaskCompleted
	task.CompletedAt = &done
	require.NoError(t, s.UpdateTask(ctx, &task))

	got, err := s.GetTask(ctx, p.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, got.Status)
	assert.Equal(t, 2, got.Version)
	require.NotNil(t, got.CompletedAt)

	_, err = s.GetTask(ctx, uuid.New(), task.ID)
	assert.ErrorIs(t, err, ErrNotFound, "tasks are scoped to their project")

	require.NoError(t, s.DeleteTask(ctx, p.ID, task.ID))
	assert.ErrorIs(t, s.DeleteTask(ctx, p.ID, task.ID), ErrNotFound)
}

func TestGuestBudgetVendorCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, p := seedProject(t, s)

	g := model.Guest{ProjectID: p.ID, Name: "Riley", RSVP: model.RSVPPending, PlusOne: true}
	require.NoError(t, s.CreateGuest(ctx, &g))
	g.RSVP = model.RSVPYes
	require.NoError(t, s.UpdateGuest(ctx, &g))
	gotGuest, err := s.GetGuest(ctx, p.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RSVPYes, gotGuest.RSVP)
	assert.True(t, gotGuest.PlusOne)

	b := model.BudgetItem{ProjectID: p.ID, Category: "Venue", EstimatedCost: "12000", ActualCost: "11500.50"}
	require.NoError(t, s.CreateBudgetItem(ctx, &b))
	b.Paid = true
	require.NoError(t, s.UpdateBudgetItem(ctx, &b))
	items, err := s.ListBudgetItems(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Paid)
	assert.Equal(t, "11500.50", items[0].ActualCost)

	v := model.Vendor{ProjectID: p.ID, Name: "Bloom Co", Status: model.VendorContacted}
	require.NoError(t, s.CreateVendor(ctx, &v))
	v.Status = model.VendorBooked
	require.NoError(t, s.UpdateVendor(ctx, &v))
	vendors, err := s.ListVendors(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, model.VendorBooked, vendors[0].Status)

	require.NoError(t, s.DeleteGuest(ctx, p.ID, g.ID))
	require.NoError(t, s.DeleteBudgetItem(ctx, p.ID, b.ID))
	require.NoError(t, s.DeleteVendor(ctx, p.ID, v.ID))

	_, err = s.GetBudgetItem(ctx, p.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVendor(ctx, p.ID, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivitiesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, p := seedProject(t, s)

	for i, action := range []string{model.ActionCreated, model.ActionUpdated, model.ActionDeleted} {
		a := model.Activity{ProjectID: p.ID, UserID: u.ID, Action: action, EntityType: "task", EntityID: "t1"}
		require.NoError(t, s.RecordActivity(ctx, &a))
		_, err := ulid.Parse(a.ID)
		require.NoErrorf(t, err, "activity %d id", i)
		time.Sleep(2 * time.Millisecond)
	}

	got, err := s.ListActivities(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ActionDeleted, got[0].Action)
	assert.Equal(t, model.ActionUpdated, got[1].Action)
}

func TestDeletingProjectCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, p := seedProject(t, s)
	require.NoError(t, s.CreateTask(ctx, &model.Task{ProjectID: p.ID, Title: "x", Priority: model.PriorityLow, Status: model.TaskPending}))

	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, p.ID.String())
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
