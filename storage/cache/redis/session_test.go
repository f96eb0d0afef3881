package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/tests"
)

func setup(t *testing.T, ttl time.Duration) (attendance.SessionRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	conf := core.NewTestConfig()
	conf.Session.RedisAddr = srv.Addr()
	conf.Session.RedisDB = 15

	client, err := Open(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	srv.Select(conf.Session.RedisDB)
	return NewSessionRepository(client, ttl), srv
}

func newSession(t *testing.T, updatedAt time.Time) attendance.Session {
	roster := []student.Student{{ID: "s1", UniqueID: "U-001", FirstName: "Abel", FatherName: "Kebede", Grade: "5"}}
	state, err := attendance.NewState(testutil.Sunday, roster)
	require.NoError(t, err)
	return attendance.Session{
		ID:        uuid.NewString(),
		Owner:     "u1",
		State:     state,
		CreatedAt: updatedAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
}

func TestOpen_unreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	conf := core.NewTestConfig()
	conf.Session.RedisAddr = addr
	_, err := Open(context.Background(), conf)
	assert.Error(t, err)
}

func TestSessionRepository(t *testing.T) {
	repo, _ := setup(t, time.Minute)
	ctx := context.Background()
	sess := newSession(t, time.Now())

	_, err := repo.CreateSession(ctx, sess)
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, sess)
	assert.Error(t, err, "ids are unique")

	got, err := repo.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	sess.State, err = attendance.Reduce(sess.State, attendance.TogglePresent{StudentID: "s1"})
	require.NoError(t, err)
	_, err = repo.UpdateSession(ctx, sess)
	require.NoError(t, err)
	got, err = repo.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.Present, got.State.StatusOf("s1"))

	require.NoError(t, repo.DeleteSession(ctx, sess.ID))
	_, err = repo.GetSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = repo.UpdateSession(ctx, sess)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(repo.DeleteSession(ctx, sess.ID), core.ErrNotFound))
}

func TestSessionRepository_ttl(t *testing.T) {
	ctx := context.Background()

	t.Run("expires without updates", func(t *testing.T) {
		repo, srv := setup(t, time.Minute)
		sess := newSession(t, time.Now())
		_, err := repo.CreateSession(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, srv.TTL(key(sess.ID)))

		srv.FastForward(40 * time.Second)
		_, err = repo.UpdateSession(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, srv.TTL(key(sess.ID)), "updates renew the ttl")

		srv.FastForward(61 * time.Second)
		_, err = repo.GetSession(ctx, sess.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		_, err = repo.UpdateSession(ctx, sess)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("no ttl", func(t *testing.T) {
		repo, srv := setup(t, 0)
		sess := newSession(t, time.Now())
		_, err := repo.CreateSession(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), srv.TTL(key(sess.ID)))
		assert.True(t, srv.Exists(key(sess.ID)))
	})
}

func TestSessionRepository_DeleteIdleSessions(t *testing.T) {
	repo, srv := setup(t, 0)
	ctx := context.Background()
	now := time.Now()

	idle := newSession(t, now.Add(-2*time.Hour))
	active := newSession(t, now)
	for _, s := range []attendance.Session{idle, active} {
		_, err := repo.CreateSession(ctx, s)
		require.NoError(t, err)
	}

	n, err := repo.DeleteIdleSessions(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetSession(ctx, active.ID)
	assert.NoError(t, err)
	_, err = repo.GetSession(ctx, idle.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	// other keys are left alone
	require.NoError(t, srv.Set("other:key", "lol"))
	n, err = repo.DeleteIdleSessions(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, srv.Exists("other:key"))
}
