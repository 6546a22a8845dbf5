package service

import (
	"github.com/golang/geo/s2"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

// Mean earth radius in miles
const earthRadiusMiles = 3958.8

// DistanceMiles is the great-circle distance between two coordinates.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * earthRadiusMiles
}

// StoreDistances returns the distance from base to every located store within
// radiusMiles, keyed by store id. A base without coordinates yields nil.
func StoreDistances(base *model.Base, stores []model.Store, radiusMiles float64) map[int64]float64 {
	if base == nil || !base.HasLocation() {
		return nil
	}

	out := make(map[int64]float64)
	for i := range stores {
		s := &stores[i]
		if !s.HasLocation() {
			continue
		}
		d := DistanceMiles(*base.Latitude, *base.Longitude, *s.Latitude, *s.Longitude)
		if d <= radiusMiles {
			out[s.ID] = d
		}
	}
	return out
}
