package geo

import (
	"math"
	"sort"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
)

// earthRadiusKm is the mean earth radius of the spherical approximation.
const earthRadiusKm = 6371.0

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Distance returns the great-circle distance between a and b in kilometers,
// using the haversine formula on a spherical earth.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Match pairs a shop with its distance from the query origin.
type Match struct {
	Shop       *models.Shop `json:"shop"`
	DistanceKm float64      `json:"distance_km"`
}

// Nearby filters shops to those active, carrying coordinates, and within
// radiusKm of origin, sorted ascending by distance.
func Nearby(shops []models.Shop, origin Point, radiusKm float64) ([]Match, error) {
	if !origin.Finite() {
		return nil, apperr.InvalidArgument("origin coordinates must be finite numbers")
	}
	if radiusKm <= 0 {
		return nil, apperr.InvalidArgument("radius must be positive, got %v", radiusKm)
	}

	matches := make([]Match, 0, len(shops))
	for i := range shops {
		shop := &shops[i]
		if !shop.IsActive || !shop.HasCoordinates() {
			continue
		}
		d := Distance(origin, Point{Lat: shop.Latitude.Float64, Lng: shop.Longitude.Float64})
		if d > radiusKm {
			continue
		}
		matches = append(matches, Match{Shop: shop, DistanceKm: d})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches, nil
}
