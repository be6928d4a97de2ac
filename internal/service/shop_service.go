package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/geo"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
	"github.com/chinmaymk2005/my-local-shop/internal/util"
)

// ShopStore is the persistence surface for shop queries and listings.
type ShopStore interface {
	GetActiveShops(ctx context.Context) ([]models.Shop, error)
	GetShopByOwnerID(ctx context.Context, ownerID int64) (*models.Shop, error)
	GetProductByShopAndName(ctx context.Context, shopID int64, name string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
}

// StockCache keeps the cached stock counters coherent with listing edits.
type StockCache interface {
	SeedStock(ctx context.Context, productID int64, quantity int) error
	InvalidateStock(ctx context.Context, productID int64) error
}

// ShopService serves the proximity query and shop-owner listing management.
type ShopService struct {
	store           ShopStore
	stock           StockCache
	defaultRadiusKm float64
	logger          *zap.Logger
}

// NewShopService creates a shop service with the configured default search
// radius. stock may be nil when no counter cache is in play.
func NewShopService(store ShopStore, stock StockCache, defaultRadiusKm float64) *ShopService {
	return &ShopService{
		store:           store,
		stock:           stock,
		defaultRadiusKm: defaultRadiusKm,
		logger:          util.GetLogger(),
	}
}

// NearbyShops ranks active shops by great-circle distance from the origin,
// nearest first, within radiusKm. radiusKm <= 0 selects the configured
// default.
func (s *ShopService) NearbyShops(ctx context.Context, lat, lng, radiusKm float64) ([]geo.Match, error) {
	ctx, span := util.StartSpan(ctx, "ShopService.NearbyShops")
	defer span.End()

	if radiusKm <= 0 {
		radiusKm = s.defaultRadiusKm
	}

	shops, err := s.store.GetActiveShops(ctx)
	if err != nil {
		return nil, err
	}

	matches, err := geo.Nearby(shops, geo.Point{Lat: lat, Lng: lng}, radiusKm)
	if err != nil {
		return nil, err
	}

	util.NearbyQueriesTotal.Inc()
	return matches, nil
}

// GetShop returns the shop owned by actorID.
func (s *ShopService) GetShop(ctx context.Context, actorID int64) (*models.Shop, error) {
	return s.store.GetShopByOwnerID(ctx, actorID)
}

// UpsertProductRequest is a validated listing input from a shop owner.
type UpsertProductRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Price    int64  `json:"price" binding:"required,min=0"`
	Quantity int    `json:"quantity" binding:"min=0"`
}

func (r *UpsertProductRequest) validate() error {
	if r.Name == "" {
		return apperr.InvalidArgument("product name is required")
	}
	if r.Price < 0 {
		return apperr.InvalidArgument("price must be non-negative, got %d", r.Price)
	}
	if r.Quantity < 0 {
		return apperr.InvalidArgument("quantity must be non-negative, got %d", r.Quantity)
	}
	return nil
}

// Upsert actions
const (
	ProductCreated = "created"
	ProductUpdated = "updated"
)

// UpsertProduct creates a listing in the actor's shop, or updates the
// existing one matched by case-insensitive name.
func (s *ShopService) UpsertProduct(ctx context.Context, actorID int64, req *UpsertProductRequest) (*models.Product, string, error) {
	ctx, span := util.StartSpan(ctx, "ShopService.UpsertProduct")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, "", err
	}

	shop, err := s.store.GetShopByOwnerID(ctx, actorID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, "", apperr.Forbidden("actor %d has no registered shop", actorID)
		}
		return nil, "", err
	}

	existing, err := s.store.GetProductByShopAndName(ctx, shop.ID, req.Name)
	if err != nil {
		return nil, "", err
	}

	if existing != nil {
		existing.Category = req.Category
		existing.Price = req.Price
		existing.Quantity = req.Quantity
		existing.IsAvailable = req.Quantity > 0
		if err := s.store.UpdateProduct(ctx, existing); err != nil {
			return nil, "", err
		}
		// The cached counter still holds the pre-edit quantity; drop it so
		// reservations serialize on the database row until it is re-seeded.
		if s.stock != nil {
			if err := s.stock.InvalidateStock(ctx, existing.ID); err != nil {
				s.logger.Error("failed to invalidate stock counter after edit",
					zap.Int64("product_id", existing.ID),
					zap.Error(err))
			}
		}
		s.logger.Info("product updated",
			zap.Int64("shop_id", shop.ID),
			zap.Int64("product_id", existing.ID))
		return existing, ProductUpdated, nil
	}

	product := &models.Product{
		ShopID:      shop.ID,
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quantity:    req.Quantity,
		IsAvailable: req.Quantity > 0,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, "", err
	}
	if s.stock != nil {
		if err := s.stock.SeedStock(ctx, product.ID, product.Quantity); err != nil {
			s.logger.Error("failed to seed stock counter for new listing",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		}
	}
	s.logger.Info("product created",
		zap.Int64("shop_id", shop.ID),
		zap.Int64("product_id", product.ID))
	return product, ProductCreated, nil
}
