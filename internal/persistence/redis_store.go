package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/formflow/pkg/api"
)

// RedisStateStore is a StateStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>state:<session>:<route>  => gob-encoded FlowState
//	<prefix>idx:session:<session>    => SET of routes with state for the session
//
// Every read and write extends the expiry of the state key by ttl, so an
// abandoned flow disappears with the visitor's session.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ api.StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore creates a RedisStateStore.
// prefix is optional but recommended (e.g. "formflow:"). A zero ttl keeps
// state forever.
func NewRedisStateStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStateStore {
	if prefix == "" {
		prefix = "formflow:"
	}
	return &RedisStateStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStateStore) keyState(session, route string) string {
	return s.prefix + "state:" + session + ":" + route
}

func (s *RedisStateStore) keySession(session string) string {
	return s.prefix + "idx:session:" + session
}

func (s *RedisStateStore) GetFlowState(ctx context.Context, session api.Session, route string) (api.FlowState, error) {
	key := s.keyState(session.ID, route)

	var cmd *redis.StringCmd
	if s.ttl > 0 {
		cmd = s.client.GetEx(ctx, key, s.ttl)
	} else {
		cmd = s.client.Get(ctx, key)
	}

	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return api.FlowState{}, ErrStateNotFound
		}
		return api.FlowState{}, err
	}
	return DecodeState(data)
}

func (s *RedisStateStore) PutFlowState(ctx context.Context, session api.Session, route string, state api.FlowState) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyState(session.ID, route), data, s.ttl)
	pipe.SAdd(ctx, s.keySession(session.ID), route)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.keySession(session.ID), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ClearSession removes the state of every route for session.
func (s *RedisStateStore) ClearSession(ctx context.Context, session api.Session) error {
	routes, err := s.client.SMembers(ctx, s.keySession(session.ID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(routes)+1)
	for _, r := range routes {
		keys = append(keys, s.keyState(session.ID, r))
	}
	keys = append(keys, s.keySession(session.ID))

	return s.client.Del(ctx, keys...).Err()
}
