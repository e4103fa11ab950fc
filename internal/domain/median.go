package domain

import (
	"errors"
	"math"
)

const (
	medianTolerance     = 1e-7
	medianMaxIterations = 1000
)

// GeometricMedian returns the point minimizing the summed planar distance to
// all features, together with that summed distance. It runs Weiszfeld's
// iteration from the centroid and stops early when the estimate lands on a
// data point or moves less than the tolerance.
//
// Distances are computed on raw degrees, which is adequate for choosing a
// venue suggestion but not for measuring travel.
func GeometricMedian(features FeatureCollection) (lat, lon, total float64, err error) {
	if len(features) == 0 {
		return 0, 0, 0, errors.New("geometric median of empty collection")
	}

	for _, f := range features {
		lat += f.Latitude
		lon += f.Longitude
	}
	n := float64(len(features))
	lat, lon = lat/n, lon/n

	for range medianMaxIterations {
		var numLat, numLon, denom float64
		for _, f := range features {
			d := math.Hypot(lat-f.Latitude, lon-f.Longitude)
			if d < medianTolerance {
				return f.Latitude, f.Longitude, totalDistance(features, f.Latitude, f.Longitude), nil
			}
			w := 1 / d
			numLat += f.Latitude * w
			numLon += f.Longitude * w
			denom += w
		}

		nextLat, nextLon := numLat/denom, numLon/denom
		moved := math.Hypot(nextLat-lat, nextLon-lon)
		lat, lon = nextLat, nextLon
		if moved < medianTolerance {
			break
		}
	}

	return lat, lon, totalDistance(features, lat, lon), nil
}

func totalDistance(features FeatureCollection, lat, lon float64) float64 {
	var sum float64
	for _, f := range features {
		sum += math.Hypot(lat-f.Latitude, lon-f.Longitude)
	}
	return sum
}
