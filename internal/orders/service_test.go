package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
)

type stubOrderRepo struct {
	rows     []models.Order
	owned    bool
	err      error
	lastUser uuid.UUID
}

func (s *stubOrderRepo) WithTx(*gorm.DB) OrderRepository { return s }

func (s *stubOrderRepo) Create(context.Context, *models.Order) error { return s.err }

func (s *stubOrderRepo) FindByPaymentRef(context.Context, string) (*models.Order, error) {
	return nil, s.err
}

func (s *stubOrderRepo) HasCompletedOrder(_ context.Context, ownerID, _ uuid.UUID) (bool, error) {
	s.lastUser = ownerID
	return s.owned, s.err
}

func (s *stubOrderRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Order, error) {
	s.lastUser = ownerID
	return s.rows, s.err
}

type stubCatalog struct {
	videos map[uuid.UUID]models.Video
}

func (s stubCatalog) Lookup(_ context.Context, id uuid.UUID) (*models.Video, error) {
	if v, ok := s.videos[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (s stubCatalog) LookupMany(context.Context, []uuid.UUID) (map[uuid.UUID]models.Video, error) {
	return s.videos, nil
}

func TestServiceListOrdersResolvesDisplayFields(t *testing.T) {
	videoID := uuid.New()
	thumb := "https://cdn.example/thumb.jpg"
	repo := &stubOrderRepo{rows: []models.Order{{
		ID:          uuid.New(),
		TotalAmount: decimal.RequireFromString("500"),
		Items: []models.OrderItem{
			{VideoID: videoID, Price: decimal.RequireFromString("500")},
			{VideoID: uuid.New(), Price: decimal.RequireFromString("0")},
		},
	}}}
	svc, err := NewService(repo, stubCatalog{videos: map[uuid.UUID]models.Video{
		videoID: {ID: videoID, Title: "Night Drive", ThumbnailURL: &thumb},
	}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	owner := uuid.New()
	views, err := svc.ListOrders(context.Background(), owner)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if repo.lastUser != owner {
		t.Fatalf("expected lookup for %s", owner)
	}
	if len(views) != 1 || len(views[0].Items) != 2 {
		t.Fatalf("unexpected views %+v", views)
	}
	if views[0].Items[0].Title != "Night Drive" || views[0].Items[0].ThumbnailURL == nil {
		t.Fatalf("expected resolved display fields, got %+v", views[0].Items[0])
	}
	if views[0].Items[1].Title != "" {
		t.Fatalf("unresolved videos keep an empty title, got %q", views[0].Items[1].Title)
	}
}

func TestServiceListOrdersRequiresUser(t *testing.T) {
	svc, _ := NewService(&stubOrderRepo{}, stubCatalog{})
	_, err := svc.ListOrders(context.Background(), uuid.Nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceHasCompletedOrderWrapsStorageErrors(t *testing.T) {
	svc, _ := NewService(&stubOrderRepo{err: errors.New("db down")}, stubCatalog{})
	_, err := svc.HasCompletedOrder(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestVideoIDsDeduplicates(t *testing.T) {
	shared := uuid.New()
	ids := VideoIDs(
		models.Order{Items: []models.OrderItem{{VideoID: shared}}},
		models.Order{Items: []models.OrderItem{{VideoID: shared}, {VideoID: uuid.New()}}},
	)
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct ids, got %d", len(ids))
	}
}
