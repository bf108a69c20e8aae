package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// SectionLock is a best-effort advisory lock per event section. It keeps
// concurrent confirmations of a hot section from queueing on the database
// row lock; the row lock itself remains the correctness guarantee, so a
// missing or expired advisory lock is never a safety problem.
type SectionLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSectionLock(client *redis.Client, ttl time.Duration) *SectionLock {
	return &SectionLock{Client: client, TTL: ttl}
}

func key(sectionID string) string {
	return "section_lock:" + sectionID
}

// Lock attempts to take the advisory lock for a section. It returns false
// without error when another owner holds it.
func (s *SectionLock) Lock(ctx context.Context, sectionID, ownerID string) (bool, error) {
	return s.Client.SetNX(ctx, key(sectionID), ownerID, s.TTL).Result()
}

// Unlock releases the lock if this owner still holds it. Unlocking a lock
// that expired or belongs to someone else is a no-op.
func (s *SectionLock) Unlock(ctx context.Context, sectionID, ownerID string) error {
	val, err := s.Client.Get(ctx, key(sectionID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == ownerID {
		_, err = s.Client.Del(ctx, key(sectionID)).Result()
		return err
	}
	return nil
}
