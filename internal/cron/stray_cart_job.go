package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox/payloads"
)

const (
	defaultStrayCartGrace = 15 * time.Minute
	defaultStrayCartBatch = 100
)

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type StrayCartJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Carts  cart.CartRepository
	Outbox outboxEmitter
	// Grace keeps carts that were touched recently out of the sweep so an
	// in-flight confirmation finishes on its own.
	Grace     time.Duration
	BatchSize int
}

// strayCartJob deletes carts whose contents already became an order but whose
// removal was lost, for example after a crash between the two steps of an old
// confirmation or a failed best-effort cleanup.
type strayCartJob struct {
	logg   *logger.Logger
	db     txRunner
	carts  cart.CartRepository
	outbox outboxEmitter
	grace  time.Duration
	batch  int
	now    func() time.Time
}

func NewStrayCartJob(params StrayCartJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Carts == nil:
		return nil, errors.New("cart repository required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	}
	job := &strayCartJob{
		logg:   params.Logger,
		db:     params.DB,
		carts:  params.Carts,
		outbox: params.Outbox,
		grace:  params.Grace,
		batch:  params.BatchSize,
		now:    time.Now,
	}
	if job.grace <= 0 {
		job.grace = defaultStrayCartGrace
	}
	if job.batch <= 0 {
		job.batch = defaultStrayCartBatch
	}
	return job, nil
}

func (j *strayCartJob) Name() string { return "stray-cart-sweep" }

func (j *strayCartJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	settled, err := j.carts.ListSettled(ctx, now.Add(-j.grace), j.batch)
	if err != nil {
		return fmt.Errorf("list settled carts: %w", err)
	}

	var (
		errs    error
		retired int
	)
	for _, stray := range settled {
		ok, err := j.retire(ctx, stray, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cart %s: %w", stray.CartID, err))
			continue
		}
		if ok {
			retired++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(settled),
		"retired":    retired,
	}), "cart.stray_sweep.done")
	return errs
}

func (j *strayCartJob) retire(ctx context.Context, stray cart.SettledCart, now time.Time) (bool, error) {
	var removed int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		removed, err = j.carts.WithTx(tx).Delete(ctx, stray.CartID)
		if err != nil || removed == 0 {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStrayCartRetired,
			AggregateType: enums.AggregateCart,
			AggregateID:   stray.CartID,
			Actor:         &outbox.ActorRef{UserID: stray.OwnerID, Source: "cron"},
			Data: payloads.StrayCartRetiredEvent{
				CartID:    stray.CartID,
				OwnerID:   stray.OwnerID,
				OrderID:   stray.OrderID,
				RetiredAt: now,
			},
			OccurredAt: now,
		})
	})
	return removed > 0, err
}
