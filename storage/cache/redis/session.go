// Package rediscache keeps attendance sessions in redis, so they survive API restarts
// and can be shared by several API instances.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
)

const keyPrefix = "senbet:session:"

// Open connects to redis and checks the connection.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Session.RedisAddr,
		Password: conf.Session.RedisPassword,
		DB:       conf.Session.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Session.RedisAddr)
	}
	return client, nil
}

type sessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ attendance.SessionRepository = (*sessionRepository)(nil) // interface compliance check

// NewSessionRepository stores sessions as JSON. Keys expire after ttl without updates (0: never).
func NewSessionRepository(client *redis.Client, ttl time.Duration) attendance.SessionRepository {
	return &sessionRepository{client: client, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

func (repo *sessionRepository) save(ctx context.Context, sess attendance.Session, mustExist bool) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "marshaling session")
	}

	args := redis.SetArgs{TTL: repo.ttl}
	if mustExist {
		args.Mode = "XX"
	} else {
		args.Mode = "NX"
	}
	err = repo.client.SetArgs(ctx, key(sess.ID), data, args).Err()
	if errors.Is(err, redis.Nil) {
		if mustExist {
			return attendance.ErrSessionNotFound
		}
		return errors.Errorf("session %s already exists", sess.ID)
	}
	return errors.Wrap(err, "saving session")
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	if err := repo.save(ctx, sess, false); err != nil {
		return attendance.Session{}, err
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	data, err := repo.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "getting session")
	}

	var sess attendance.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return attendance.Session{}, errors.Wrap(err, "unmarshaling session")
	}
	return sess, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	if err := repo.save(ctx, sess, true); err != nil {
		return attendance.Session{}, err
	}
	return sess, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	n, err := repo.client.Del(ctx, key(id)).Result()
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n == 0 {
		return attendance.ErrSessionNotFound
	}
	return nil
}

// DeleteIdleSessions complements key expiry for sessions stored without a TTL.
func (repo *sessionRepository) DeleteIdleSessions(ctx context.Context, since time.Time) (int, error) {
	var n int
	iter := repo.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		sess, err := repo.GetSession(ctx, k[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue // expired meanwhile
			}
			return n, err
		}
		if !sess.UpdatedAt.Before(since) {
			continue
		}
		deleted, err := repo.client.Del(ctx, k).Result()
		if err != nil {
			return n, errors.Wrap(err, "deleting idle session")
		}
		n += int(deleted)
	}
	if err := iter.Err(); err != nil {
		return n, errors.Wrap(err, "scanning sessions")
	}
	return n, nil
}
