package service

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
)

type memShopStore struct {
	mu            sync.Mutex
	shops         map[int64]*models.Shop
	products      map[int64]*models.Product
	nextProductID int64
}

func newMemShopStore() *memShopStore {
	return &memShopStore{
		shops:    make(map[int64]*models.Shop),
		products: make(map[int64]*models.Product),
	}
}

func (m *memShopStore) GetActiveShops(_ context.Context) ([]models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Shop
	for _, s := range m.shops {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memShopStore) GetShopByOwnerID(_ context.Context, ownerID int64) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shops {
		if s.OwnerID == ownerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("no shop registered for owner %d", ownerID)
}

func (m *memShopStore) GetProductByShopAndName(_ context.Context, shopID int64, name string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ShopID == shopID && strings.EqualFold(p.Name, name) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memShopStore) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	product.ID = m.nextProductID
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *memShopStore) UpdateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

type fakeStockCache struct {
	mu          sync.Mutex
	seeded      map[int64]int
	invalidated map[int64]int
}

func newFakeStockCache() *fakeStockCache {
	return &fakeStockCache{seeded: make(map[int64]int), invalidated: make(map[int64]int)}
}

func (f *fakeStockCache) SeedStock(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded[productID] = quantity
	return nil
}

func (f *fakeStockCache) InvalidateStock(_ context.Context, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated[productID]++
	delete(f.seeded, productID)
	return nil
}

func coord(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestNearbyShopsRanksByDistance(t *testing.T) {
	st := newMemShopStore()
	// Origin sits at Dadar; the near shop is a few hundred meters out, the
	// far one past the default radius, the inactive one would otherwise win.
	st.shops[1] = &models.Shop{ID: 1, Name: "Far", IsActive: true, Latitude: coord(19.05), Longitude: coord(72.88)}
	st.shops[2] = &models.Shop{ID: 2, Name: "Near", IsActive: true, Latitude: coord(19.0180), Longitude: coord(72.8420)}
	st.shops[3] = &models.Shop{ID: 3, Name: "Closed", IsActive: false, Latitude: coord(19.0176), Longitude: coord(72.8417)}

	svc := NewShopService(st, nil, 1.1)

	matches, err := svc.NearbyShops(context.Background(), 19.0176, 72.8417, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Near", matches[0].Shop.Name)
	assert.Less(t, matches[0].DistanceKm, 1.1)

	// A wider radius pulls the far shop in, still sorted nearest first.
	matches, err = svc.NearbyShops(context.Background(), 19.0176, 72.8417, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Near", matches[0].Shop.Name)
	assert.Equal(t, "Far", matches[1].Shop.Name)
}

func TestNearbyShopsRejectsBadOrigin(t *testing.T) {
	svc := NewShopService(newMemShopStore(), nil, 1.1)
	_, err := svc.NearbyShops(context.Background(), math.NaN(), 0, 0)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestUpsertProductCreatesThenUpdates(t *testing.T) {
	st := newMemShopStore()
	st.shops[5] = &models.Shop{ID: 5, OwnerID: 50, Name: "Kirana", IsActive: true}
	svc := NewShopService(st, nil, 1.1)
	ctx := context.Background()

	created, action, err := svc.UpsertProduct(ctx, 50, &UpsertProductRequest{
		Name: "Toor Dal", Category: "grocery", Price: 150, Quantity: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, ProductCreated, action)
	assert.True(t, created.IsAvailable)
	assert.Equal(t, int64(5), created.ShopID)

	// Same name in a different case updates in place.
	updated, action, err := svc.UpsertProduct(ctx, 50, &UpsertProductRequest{
		Name: "toor dal", Category: "grocery", Price: 140, Quantity: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, ProductUpdated, action)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(140), updated.Price)
	assert.False(t, updated.IsAvailable, "zero quantity delists the product")
}

func TestUpsertProductKeepsStockCacheCoherent(t *testing.T) {
	st := newMemShopStore()
	st.shops[5] = &models.Shop{ID: 5, OwnerID: 50, Name: "Kirana", IsActive: true}
	cache := newFakeStockCache()
	svc := NewShopService(st, cache, 1.1)
	ctx := context.Background()

	created, _, err := svc.UpsertProduct(ctx, 50, &UpsertProductRequest{
		Name: "Toor Dal", Category: "grocery", Price: 150, Quantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, cache.seeded[created.ID], "new listing seeds its counter")

	// Editing the quantity down must drop the counter; a stale counter of 10
	// would keep approving fast-path reservations against 1 real unit.
	_, _, err = svc.UpsertProduct(ctx, 50, &UpsertProductRequest{
		Name: "Toor Dal", Category: "grocery", Price: 150, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated[created.ID])
	_, stillCached := cache.seeded[created.ID]
	assert.False(t, stillCached)
}

func TestUpsertProductWithoutShopIsForbidden(t *testing.T) {
	svc := NewShopService(newMemShopStore(), nil, 1.1)
	_, _, err := svc.UpsertProduct(context.Background(), 99, &UpsertProductRequest{
		Name: "Toor Dal", Category: "grocery", Price: 150, Quantity: 20,
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpsertProductValidation(t *testing.T) {
	st := newMemShopStore()
	st.shops[5] = &models.Shop{ID: 5, OwnerID: 50, Name: "Kirana", IsActive: true}
	svc := NewShopService(st, nil, 1.1)

	_, _, err := svc.UpsertProduct(context.Background(), 50, &UpsertProductRequest{
		Name: "", Category: "grocery", Price: 150, Quantity: 20,
	})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}
