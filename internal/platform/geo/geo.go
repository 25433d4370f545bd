// Package geo computes great-circle distances for hospital lookups.
package geo

import (
	"math"
	"sort"
)

const earthRadiusKm = 6371.0

type Point struct {
	Lat float64
	Lng float64
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Locator extracts an item's coordinates; ok is false when it has none.
type Locator[T any] func(item T) (p Point, ok bool)

// Nearest scans items and returns the one closest to origin. Items without
// coordinates are ignored; found is false when none has coordinates.
func Nearest[T any](origin Point, items []T, loc Locator[T]) (nearest T, distanceKm float64, found bool) {
	best := math.Inf(1)
	for _, it := range items {
		p, ok := loc(it)
		if !ok {
			continue
		}
		if d := Haversine(origin, p); d < best {
			best, nearest, found = d, it, true
		}
	}
	if !found {
		return nearest, 0, false
	}
	return nearest, best, true
}

// Ranked pairs an item with its distance from the search origin.
// DistanceKm is nil for items without coordinates.
type Ranked[T any] struct {
	Item       T
	DistanceKm *float64
}

// FilterAndSort drops items with coordinates farther than radiusKm from
// origin and orders the rest by ascending distance. Items without
// coordinates are kept and placed last in their original order.
func FilterAndSort[T any](origin Point, radiusKm float64, items []T, loc Locator[T]) []Ranked[T] {
	out := make([]Ranked[T], 0, len(items))
	for _, it := range items {
		p, ok := loc(it)
		if !ok {
			out = append(out, Ranked[T]{Item: it})
			continue
		}
		d := Haversine(origin, p)
		if d > radiusKm {
			continue
		}
		out = append(out, Ranked[T]{Item: it, DistanceKm: &d})
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DistanceKm, out[j].DistanceKm
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
	return out
}

// Round2 rounds km to two decimals for display.
func Round2(km float64) float64 {
	return math.Round(km*100) / 100
}
