package service

import (
	"context"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
)

// KnowledgeBaseRepositoryInterface defines the repository interface for knowledge base persistence
type KnowledgeBaseRepositoryInterface interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]*domain.KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
}

// KnowledgeBaseService handles business logic for knowledge bases
type KnowledgeBaseService struct {
	repo    KnowledgeBaseRepositoryInterface
	uuidGen UUIDGenerator
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService instance
func NewKnowledgeBaseService(repo KnowledgeBaseRepositoryInterface) *KnowledgeBaseService {
	return &KnowledgeBaseService{repo: repo, uuidGen: &DefaultUUIDGenerator{}}
}

// Create registers a new knowledge base
func (s *KnowledgeBaseService) Create(ctx context.Context, name, description string) (*domain.KnowledgeBase, error) {
	kb := &domain.KnowledgeBase{
		ID:          s.uuidGen.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// GetByID retrieves a knowledge base by ID
func (s *KnowledgeBaseService) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves all knowledge bases
func (s *KnowledgeBaseService) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	return s.repo.List(ctx)
}

// Delete removes a knowledge base
func (s *KnowledgeBaseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
