package output

import (
	"math"

	"github.com/twpayne/go-polyline"

	"github.com/npmrds-measures/calculator/internal/npmrds"
)

const earthRadiusMiles = 3958.8

func hasCoordinates(attrs npmrds.SegmentAttributes) bool {
	return attrs.StartLat != 0 || attrs.StartLong != 0 || attrs.EndLat != 0 || attrs.EndLong != 0
}

// EncodeGeometry encodes the segment's start and end points as a polyline.
// Segments without coordinates encode to the empty string.
func EncodeGeometry(attrs npmrds.SegmentAttributes) string {
	if !hasCoordinates(attrs) {
		return ""
	}
	return string(polyline.EncodeCoords([][]float64{
		{attrs.StartLat, attrs.StartLong},
		{attrs.EndLat, attrs.EndLong},
	}))
}

// ChordMiles is the great-circle distance between the segment's end points.
// Compared with the segment length it flags misplaced coordinates.
func ChordMiles(attrs npmrds.SegmentAttributes) float64 {
	if !hasCoordinates(attrs) {
		return 0
	}
	lat1, lat2 := attrs.StartLat*math.Pi/180, attrs.EndLat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (attrs.EndLong - attrs.StartLong) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
