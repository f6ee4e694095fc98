package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/repo"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
)

// Lookup is the read-only catalog surface consumed by cart, checkout and orders.
type Lookup interface {
	Lookup(ctx context.Context, videoID uuid.UUID) (*models.Video, error)
	LookupMany(ctx context.Context, videoIDs []uuid.UUID) (map[uuid.UUID]models.Video, error)
}

// Repository reads videos. The catalog is owned elsewhere; nothing here writes.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Lookup returns nil, nil when the video does not exist.
func (r *Repository) Lookup(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	return repo.Optional[models.Video](r.DB(ctx).Where("id = ?", videoID))
}

// LookupMany resolves a batch of ids; ids that do not resolve are absent from the map.
func (r *Repository) LookupMany(ctx context.Context, videoIDs []uuid.UUID) (map[uuid.UUID]models.Video, error) {
	out := make(map[uuid.UUID]models.Video, len(videoIDs))
	if len(videoIDs) == 0 {
		return out, nil
	}
	var videos []models.Video
	if err := r.DB(ctx).Where("id IN ?", videoIDs).Find(&videos).Error; err != nil {
		return nil, err
	}
	for _, v := range videos {
		out[v.ID] = v
	}
	return out, nil
}
