package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/vityaded/Kahoot-clone/internal/app"
	"github.com/vityaded/Kahoot-clone/internal/domain"
)

const templatePrefix = "quiz:template:"

// TemplateStore caches templates in Redis in front of a slower backing
// store (Postgres). Reads are cache-aside with singleflight so concurrent
// sessions spawning from the same template trigger one backing load; writes
// go through to the backing store and warm the cache.
type TemplateStore struct {
	client  *redis.Client
	backing app.TemplateStore
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
}

func NewTemplateStore(client *redis.Client, backing app.TemplateStore, ttl time.Duration) *TemplateStore {
	return &TemplateStore{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *TemplateStore) Create(ctx context.Context, tpl domain.QuizTemplate) error {
	if err := s.backing.Create(ctx, tpl); err != nil {
		return err
	}
	data, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	// best-effort warm; the backing store is authoritative
	_ = s.client.Set(ctx, templatePrefix+tpl.ID, data, s.ttlWithJitter()).Err()
	return nil
}

func (s *TemplateStore) Get(ctx context.Context, id string) (domain.QuizTemplate, error) {
	if data, err := s.client.Get(ctx, templatePrefix+id).Bytes(); err == nil {
		var tpl domain.QuizTemplate
		if err := json.Unmarshal(data, &tpl); err == nil {
			return tpl, nil
		}
	}

	result, err, _ := s.sf.Do(id, func() (interface{}, error) {
		// Re-check the cache in case another goroutine filled it.
		if data, err := s.client.Get(ctx, templatePrefix+id).Bytes(); err == nil {
			var tpl domain.QuizTemplate
			if err := json.Unmarshal(data, &tpl); err == nil {
				return tpl, nil
			}
		}

		tpl, err := s.backing.Get(ctx, id)
		if err != nil {
			return domain.QuizTemplate{}, err
		}
		if data, err := json.Marshal(tpl); err == nil {
			_ = s.client.Set(ctx, templatePrefix+id, data, s.ttlWithJitter()).Err()
		}
		return tpl, nil
	})
	if err != nil {
		return domain.QuizTemplate{}, err
	}
	return result.(domain.QuizTemplate), nil
}

func (s *TemplateStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
