package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/premiumvideo-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
)

// Service answers ownership and order-history queries. All writes go through
// the checkout reconciler.
type Service interface {
	HasCompletedOrder(ctx context.Context, ownerID, videoID uuid.UUID) (bool, error)
	ListOrders(ctx context.Context, ownerID uuid.UUID) ([]OrderView, error)
}

type service struct {
	repo    OrderRepository
	catalog catalog.Lookup
}

func NewService(repo OrderRepository, lookup catalog.Lookup) (Service, error) {
	if repo == nil {
		return nil, errors.New("order repository required")
	}
	if lookup == nil {
		return nil, errors.New("catalog lookup required")
	}
	return &service{repo: repo, catalog: lookup}, nil
}

func (s *service) HasCompletedOrder(ctx context.Context, ownerID, videoID uuid.UUID) (bool, error) {
	owned, err := s.repo.HasCompletedOrder(ctx, ownerID, videoID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	return owned, nil
}

func (s *service) ListOrders(ctx context.Context, ownerID uuid.UUID) ([]OrderView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	videos, err := s.catalog.LookupMany(ctx, VideoIDs(rows...))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order videos")
	}
	views := make([]OrderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, NewOrderView(row, videos))
	}
	return views, nil
}
