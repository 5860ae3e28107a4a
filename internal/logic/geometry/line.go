package geometry

import "math"

// LinePlan splits a straight move into evenly spaced segments.
type LinePlan struct {
	From     Point3
	To       Point3
	Distance float64 // total distance in meters
	Steps    int     // number of segments, floor(Distance/Resolution)
}

// NewLinePlan calculates the segmentation of the line from -> to
// for the given resolution in meters. resolution must be > 0.
func NewLinePlan(from, to Point3, resolution float64) LinePlan {
	dist := from.Distance(to)
	return LinePlan{
		From:     from,
		To:       to,
		Distance: dist,
		Steps:    int(math.Floor(dist / resolution)),
	}
}

// Point returns the end of segment i (1-based). Point(Steps) is exactly To.
func (l LinePlan) Point(i int) Point3 {
	if i >= l.Steps {
		return l.To
	}
	return l.From.Lerp(l.To, float64(i)/float64(l.Steps))
}
