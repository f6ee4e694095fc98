package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/catalog"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
)

// Service owns the per-buyer cart. Mutations for one owner are serialized by a
// row lock on the owner's cart.
type Service interface {
	GetOrCreateCart(ctx context.Context, ownerID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (*CartView, error)
	RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) (*CartView, error)
}

type ServiceParams struct {
	Repository CartRepository
	Catalog    catalog.Lookup
	Ownership  OwnershipChecker
	TxRunner   txRunner
	Logger     *logger.Logger
}

type service struct {
	repo      CartRepository
	catalog   catalog.Lookup
	ownership OwnershipChecker
	tx        txRunner
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, errors.New("cart repository required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog lookup required")
	}
	if params.Ownership == nil {
		return nil, errors.New("ownership checker required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	return &service{
		repo:      params.Repository,
		catalog:   params.Catalog,
		ownership: params.Ownership,
		tx:        params.TxRunner,
		logg:      params.Logger,
	}, nil
}

func (s *service) GetOrCreateCart(ctx context.Context, ownerID uuid.UUID) (*CartView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	// A cart settled between the insert and the read gets recreated once.
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.repo.EnsureForOwner(ctx, ownerID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}
		cart, err := s.repo.FindByOwner(ctx, ownerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if cart != nil {
			return s.view(ctx, cart)
		}
	}
	return nil, ErrCartNotFound
}

func (s *service) AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (*CartView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	kind, err := enums.ParsePurchaseKind(input.PurchaseKind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "purchaseType must be rent or buy")
	}
	if input.VideoID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "videoId is required")
	}

	video, err := s.catalog.Lookup(ctx, input.VideoID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup video")
	}
	if video == nil || !video.IsPremium() {
		return nil, ErrNotPurchasable
	}

	owned, err := s.ownership.HasCompletedOrder(ctx, ownerID, video.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	if owned {
		return nil, ErrAlreadyOwned
	}

	var cartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockOrCreate(ctx, repo, ownerID)
		if err != nil {
			return err
		}
		cartID = cart.ID

		// An order settled while we waited on the cart lock is visible now.
		owned, err := s.ownership.HasCompletedOrderTx(ctx, tx, ownerID, video.ID)
		if err != nil {
			return err
		}
		if owned {
			return ErrAlreadyOwned
		}

		for _, item := range cart.Items {
			if item.VideoID == video.ID {
				return ErrAlreadyInCart
			}
		}

		price, ok := video.PriceFor(kind)
		if !ok {
			return ErrInvalidPrice
		}

		item := &models.CartItem{
			CartID:       cart.ID,
			VideoID:      video.ID,
			PurchaseKind: kind,
			Price:        price,
			Position:     nextPosition(cart.Items),
		}
		if err := repo.AddItem(ctx, item); err != nil {
			return err
		}
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, asServiceError(err, "add cart item")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"cart_id":       cartID.String(),
			"video_id":      video.ID.String(),
			"purchase_kind": kind,
		})
		s.logg.Info(logCtx, "cart.item_added")
	}

	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return s.view(ctx, cart)
}

func (s *service) RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) (*CartView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		cartID = cart.ID

		removed, err := repo.RemoveItem(ctx, cart.ID, itemID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return nil
		}
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, asServiceError(err, "remove cart item")
	}

	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return s.view(ctx, cart)
}

// lockOrCreate makes sure the owner has a cart and returns it under a row lock.
func (s *service) lockOrCreate(ctx context.Context, repo CartRepository, ownerID uuid.UUID) (*models.Cart, error) {
	if err := repo.EnsureForOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	cart, err := repo.LockByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

func (s *service) view(ctx context.Context, cart *models.Cart) (*CartView, error) {
	videos, err := s.catalog.LookupMany(ctx, videoIDs(*cart))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve cart videos")
	}
	view := NewCartView(*cart, videos)
	return &view, nil
}

func nextPosition(items []models.CartItem) int {
	next := 0
	for _, item := range items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next
}

func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
