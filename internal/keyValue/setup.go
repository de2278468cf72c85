package keyValue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Value struct {
	value   string
	expires time.Time
}

// Store keeps short lived keys either in redis or, when self contained, in a
// map guarded by a mutex. Expired map entries are dropped when read or
// overwritten.
type Store struct {
	sugar         *zap.SugaredLogger
	redisClient   *redis.Client
	selfContained bool

	mutex   sync.RWMutex
	hashmap map[string]Value
	now     func() time.Time
}

func Setup(sugar *zap.SugaredLogger, redisClient *redis.Client, selfContained bool) *Store {
	return &Store{
		sugar:         sugar,
		redisClient:   redisClient,
		selfContained: selfContained || redisClient == nil,
		hashmap:       make(map[string]Value),
		now:           time.Now,
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.selfContained {
		s.sugar.Debugf("Getting value of key [%s] from hashmap", key)

		s.mutex.RLock()
		v, ok := s.hashmap[key]
		s.mutex.RUnlock()

		if !ok || !v.expires.After(s.now()) {
			return "", nil
		}
		return v.value, nil
	}

	s.sugar.Debugf("Getting value of key [%s] from redis", key)

	value, err := s.redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string, expires time.Duration) error {
	if expires <= 0 {
		return nil
	}

	if s.selfContained {
		s.sugar.Debugf("Setting value of key [%s] in hashmap", key)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		now := s.now()
		for k, v := range s.hashmap {
			if !v.expires.After(now) {
				delete(s.hashmap, k)
			}
		}
		s.hashmap[key] = Value{value, now.Add(expires)}

		return nil
	}

	s.sugar.Debugf("Setting value of key [%s] in redis", key)
	return s.redisClient.Set(ctx, key, value, expires).Err()
}
