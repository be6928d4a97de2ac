package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
	"github.com/chinmaymk2005/my-local-shop/internal/redisclient"
	"github.com/chinmaymk2005/my-local-shop/internal/util"
)

// InventoryStore is the persistence surface the ledger needs.
type InventoryStore interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	ReserveStockTx(ctx context.Context, productID int64, quantity int) error
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	ReleaseStockForOrder(ctx context.Context, orderID, productID int64, quantity int) (bool, error)
}

// InventoryClient is the inventory ledger: atomic reserve with a Redis
// fast path and database fallback, and compensating release.
type InventoryClient struct {
	store  InventoryStore
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewInventoryClient creates an inventory client. redis may be nil, in
// which case every reservation takes the database path.
func NewInventoryClient(store InventoryStore, redis *redisclient.Client) *InventoryClient {
	return &InventoryClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// Reserve atomically checks and decrements product stock. Returns
// (false, nil) on insufficient stock or an unavailable listing. The check
// and decrement are one step on either path, so two concurrent reservations
// can never both pass against a stale read.
func (ic *InventoryClient) Reserve(ctx context.Context, productID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if ic.redis != nil {
		success, err := ic.redis.ReserveStock(ctx, productID, quantity)
		if err == nil {
			if !success {
				util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
				return false, nil
			}
			ic.syncReservationToDB(productID, quantity)
			return true, nil
		}
		ic.logger.Warn("redis reservation failed, falling back to DB",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	return ic.reserveDB(ctx, productID, quantity)
}

// reserveDB reserves stock through the row-locked database transaction.
func (ic *InventoryClient) reserveDB(ctx context.Context, productID int64, quantity int) (bool, error) {
	err := ic.store.ReserveStockTx(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, apperr.Unavailable("")) {
			util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
			return false, nil
		}
		util.InventoryReservationsFailed.WithLabelValues("error").Inc()
		return false, err
	}
	return true, nil
}

// syncReservationToDB mirrors a Redis-approved reservation into Postgres.
// The cached counter already guards against oversell, so this write only
// needs to converge.
func (ic *InventoryClient) syncReservationToDB(productID int64, quantity int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := ic.store.ReserveStockTx(ctx, productID, quantity); err != nil {
			ic.logger.Error("failed to sync reservation to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}()
}

// Release credits stock back unconditionally. Used only as the inline
// compensation when the order write fails right after its reservation.
func (ic *InventoryClient) Release(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Release")
	defer span.End()

	if ic.redis != nil {
		if err := ic.redis.ReleaseStock(ctx, productID, quantity); err != nil {
			ic.logger.Error("failed to release stock in redis",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}
	return ic.store.ReleaseStock(ctx, productID, quantity)
}

// SyncStockToRedis seeds the cached stock counters from the database,
// called once at startup before the fast path takes traffic. A counter
// surviving from a previous run that disagrees with the database is logged
// before being overwritten.
func (ic *InventoryClient) SyncStockToRedis(ctx context.Context) error {
	if ic.redis == nil {
		return nil
	}

	products, err := ic.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	for _, product := range products {
		if cached, err := ic.redis.GetStock(ctx, product.ID); err == nil && cached != product.Quantity {
			ic.logger.Warn("stock counter drifted from database",
				zap.Int64("product_id", product.ID),
				zap.Int("cached", cached),
				zap.Int("db", product.Quantity))
		}
		if err := ic.redis.InitStock(ctx, product.ID, product.Quantity); err != nil {
			ic.logger.Error("failed to seed stock counter",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		}
	}

	ic.logger.Info("stock counters seeded", zap.Int("count", len(products)))
	return nil
}

// SeedStock sets the cached counter for a product to an absolute quantity.
// Used for fresh listings, which cannot have reservations in flight.
func (ic *InventoryClient) SeedStock(ctx context.Context, productID int64, quantity int) error {
	if ic.redis == nil {
		return nil
	}
	return ic.redis.InitStock(ctx, productID, quantity)
}

// InvalidateStock drops the cached counter for a product. Reservations fall
// back to the row-locked database path until the counter is seeded again, so
// an edit to the listed quantity can never race a cached decrement.
func (ic *InventoryClient) InvalidateStock(ctx context.Context, productID int64) error {
	if ic.redis == nil {
		return nil
	}
	return ic.redis.DropStock(ctx, productID)
}

// ReleaseForOrder credits stock back at most once per order. The database
// release ledger decides first-ness; the cached counter is only credited
// when this call was the first.
func (ic *InventoryClient) ReleaseForOrder(ctx context.Context, orderID, productID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReleaseForOrder")
	defer span.End()

	first, err := ic.store.ReleaseStockForOrder(ctx, orderID, productID, quantity)
	if err != nil || !first {
		return false, err
	}

	if ic.redis != nil {
		if err := ic.redis.ReleaseStock(ctx, productID, quantity); err != nil {
			ic.logger.Error("failed to release stock in redis",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}
	return true, nil
}
