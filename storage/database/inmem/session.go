package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/senbet/core/attendance"
)

type sessionRepository struct {
	db *sessionTable
}

var _ attendance.SessionRepository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) attendance.SessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess attendance.Session) (attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.t[sess.ID] = sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.t[id]; ok {
		return sess, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess attendance.Session) (attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t[sess.ID]; !ok {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	repo.db.t[sess.ID] = sess
	return sess, nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t[id]; !ok {
		return attendance.ErrSessionNotFound
	}
	delete(repo.db.t, id)
	return nil
}

func (repo *sessionRepository) DeleteIdleSessions(_ context.Context, since time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, sess := range repo.db.t {
		if sess.UpdatedAt.Before(since) {
			delete(repo.db.t, id)
			n++
		}
	}
	return n, nil
}
