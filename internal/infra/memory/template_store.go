package memory

import (
	"context"
	"sync"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// TemplateStore keeps quiz templates in process memory. It is the default
// backing store when no Postgres is configured, and the seed store in tests.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]domain.QuizTemplate
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]domain.QuizTemplate)}
}

// Seed pre-loads templates (demos, tests).
func (s *TemplateStore) Seed(templates ...domain.QuizTemplate) *TemplateStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tpl := range templates {
		s.templates[tpl.ID] = tpl
	}
	return s
}

func (s *TemplateStore) Create(_ context.Context, tpl domain.QuizTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl
	return nil
}

func (s *TemplateStore) Get(_ context.Context, id string) (domain.QuizTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return domain.QuizTemplate{}, domain.ErrTemplateNotFound
	}
	return tpl, nil
}
