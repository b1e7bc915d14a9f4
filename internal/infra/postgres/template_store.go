package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// TemplateStore is the durable home of quiz templates, stored as JSONB.
type TemplateStore struct {
	pool *pgxpool.Pool
}

func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{pool: pool}
}

func (s *TemplateStore) Create(ctx context.Context, tpl domain.QuizTemplate) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_templates (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		tpl.ID, data)
	if err != nil {
		return fmt.Errorf("store template: %w", err)
	}
	return nil
}

func (s *TemplateStore) Get(ctx context.Context, id string) (domain.QuizTemplate, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_templates WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizTemplate{}, domain.ErrTemplateNotFound
	}
	if err != nil {
		return domain.QuizTemplate{}, fmt.Errorf("load template: %w", err)
	}
	var tpl domain.QuizTemplate
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return domain.QuizTemplate{}, fmt.Errorf("unmarshal template: %w", err)
	}
	return tpl, nil
}
