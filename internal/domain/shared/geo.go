package shared

import (
	"math"
	"time"
)

// EarthRadiusM is the mean Earth radius used for great-circle math
const EarthRadiusM = 6371000.0

// LatLon is an immutable geographic coordinate
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewLatLon creates a coordinate with validation
func NewLatLon(lat, lon float64) (LatLon, error) {
	if !validCoordinate(lat, lon) {
		return LatLon{}, NewBadCoordinateError(lat, lon)
	}
	return LatLon{Lat: lat, Lon: lon}, nil
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidateCoordinate rejects NaN/Inf and out-of-range values
func ValidateCoordinate(lat, lon float64) error {
	if !validCoordinate(lat, lon) {
		return NewBadCoordinateError(lat, lon)
	}
	return nil
}

// Haversine returns the great-circle distance between two points in meters
func Haversine(a, b LatLon) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// PositionAlongRoute interpolates where a vehicle should be on a waypoint
// polyline after travelling at speedMps since routeStart. Each waypoint pair is
// treated as a straight segment; segment lengths accumulate by Haversine and the
// position is interpolated linearly inside the segment containing the travelled
// distance. The second return value reports arrival: when
// elapsed * speed >= totalDistanceM the position clamps to the final waypoint.
func PositionAlongRoute(waypoints []LatLon, routeStart time.Time, totalDistanceM, speedMps float64, now time.Time) (LatLon, bool) {
	if len(waypoints) == 0 {
		return LatLon{}, true
	}
	last := waypoints[len(waypoints)-1]
	if len(waypoints) == 1 {
		return last, true
	}

	elapsed := now.Sub(routeStart).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	travelled := elapsed * speedMps
	if totalDistanceM > 0 && travelled >= totalDistanceM {
		return last, true
	}

	remaining := travelled
	for i := 0; i < len(waypoints)-1; i++ {
		segLen := Haversine(waypoints[i], waypoints[i+1])
		if segLen <= 0 {
			continue
		}
		if remaining <= segLen {
			f := remaining / segLen
			return LatLon{
				Lat: waypoints[i].Lat + (waypoints[i+1].Lat-waypoints[i].Lat)*f,
				Lon: waypoints[i].Lon + (waypoints[i+1].Lon-waypoints[i].Lon)*f,
			}, false
		}
		remaining -= segLen
	}
	return last, true
}

// DeviationFromRoute returns the minimum distance in meters from a position to
// any segment of the waypoint polyline. Point-to-segment distance is computed
// in the local tangent plane, which holds at neighborhood scale.
func DeviationFromRoute(pos LatLon, waypoints []LatLon) float64 {
	if len(waypoints) == 0 {
		return math.Inf(1)
	}
	if len(waypoints) == 1 {
		return Haversine(pos, waypoints[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(waypoints)-1; i++ {
		d := distanceToSegment(pos, waypoints[i], waypoints[i+1])
		if d < min {
			min = d
		}
	}
	return min
}

// distanceToSegment projects the point onto the segment in a local
// equirectangular plane centered on the segment start
func distanceToSegment(p, a, b LatLon) float64 {
	cosLat := math.Cos(a.Lat * math.Pi / 180)

	ax, ay := 0.0, 0.0
	bx := (b.Lon - a.Lon) * cosLat
	by := b.Lat - a.Lat
	px := (p.Lon - a.Lon) * cosLat
	py := p.Lat - a.Lat

	segSq := (bx-ax)*(bx-ax) + (by-ay)*(by-ay)
	if segSq == 0 {
		return Haversine(p, a)
	}

	t := ((px-ax)*(bx-ax) + (py-ay)*(by-ay)) / segSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	nearest := LatLon{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
	return Haversine(p, nearest)
}
