package drafts

import (
	"context"

	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

type Store interface {
	Create(ctx context.Context, d *wizard.Draft) error
	Get(ctx context.Context, id string) (*wizard.Draft, error)
	Update(ctx context.Context, id string, fn func(d *wizard.Draft) error) (*wizard.Draft, error)
	Delete(ctx context.Context, id string) error
}

// Service applies wizard operations to a user's stored drafts. Drafts of
// other users behave as if they did not exist.
type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Create(ctx context.Context, userID string) (*wizard.Draft, error) {
	d := wizard.NewDraft(userID)
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Debug("draft created", zap.String("draft_id", d.ID), zap.String("user_id", userID))
	return d, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*wizard.Draft, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (s *Service) Discard(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) edit(ctx context.Context, userID, id string, fn func(st *wizard.State) error) (*wizard.Draft, error) {
	return s.store.Update(ctx, id, func(d *wizard.Draft) error {
		if d.UserID != userID {
			return domain.ErrNotFound
		}
		return fn(d.State)
	})
}

func (s *Service) SetField(ctx context.Context, userID, id, field string, value interface{}) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		return st.HandleInputChange(field, value)
	})
}

func (s *Service) Next(ctx context.Context, userID, id string) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		return st.NextStep()
	})
}

func (s *Service) Prev(ctx context.Context, userID, id string) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		st.PrevStep()
		return nil
	})
}

func (s *Service) AddMarket(ctx context.Context, userID, id string, kind wizard.MarketKind) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		return st.AddMarket(kind)
	})
}

func (s *Service) UpdateMarket(ctx context.Context, userID, id string, kind wizard.MarketKind, index int, m domain.Market) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		return st.UpdateMarket(kind, index, m)
	})
}

// RemoveMarket deletes a market entry. The first entry is never removed.
func (s *Service) RemoveMarket(ctx context.Context, userID, id string, kind wizard.MarketKind, index int) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		_, err := st.RemoveMarket(kind, index)
		return err
	})
}

func (s *Service) AddDocument(ctx context.Context, userID, id string, doc wizard.Document) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		return st.AddDocument(doc)
	})
}

func (s *Service) RemoveDocument(ctx context.Context, userID, id string, index int) (*wizard.Draft, error) {
	return s.edit(ctx, userID, id, func(st *wizard.State) error {
		st.RemoveDocument(index)
		return nil
	})
}
