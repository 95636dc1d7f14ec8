package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quarrydocs/quarry/internal/domain"
)

type KnowledgeBaseRepository struct {
	pool *pgxpool.Pool
}

func NewKnowledgeBaseRepository(pool *pgxpool.Pool) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{pool: pool}
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO knowledge_bases (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		kb.ID, kb.Name, nullableString(kb.Description), kb.CreatedAt,
	)
	return err
}

func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var description pgtype.Text
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM knowledge_bases WHERE id = $1`,
		id,
	).Scan(&kb.ID, &kb.Name, &description, &kb.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	if description.Valid {
		kb.Description = description.String
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at FROM knowledge_bases ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bases []*domain.KnowledgeBase
	for rows.Next() {
		var kb domain.KnowledgeBase
		var description pgtype.Text
		if err := rows.Scan(&kb.ID, &kb.Name, &description, &kb.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			kb.Description = description.String
		}
		bases = append(bases, &kb)
	}
	return bases, rows.Err()
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM knowledge_bases WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}
