package zones

import (
	"math"

	"github.com/danmuck/parkbeam/internal/protocol"
)

// Box is an axis-aligned detection rectangle in frame pixels.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) normalized() Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

func (b Box) Center() protocol.Point {
	return protocol.Point{X: int(math.Round((b.X1 + b.X2) / 2)), Y: int(math.Round((b.Y1 + b.Y2) / 2))}
}

type vec struct{ x, y float64 }

func toVecs(points []protocol.Point) []vec {
	out := make([]vec, len(points))
	for i, p := range points {
		out[i] = vec{float64(p.X), float64(p.Y)}
	}
	return out
}

func polygonArea(poly []vec) float64 {
	var sum float64
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		sum += a.x*b.y - b.x*a.y
	}
	return math.Abs(sum) / 2
}

// Area returns the polygon area of a zone.
func Area(z protocol.ZoneConfig) float64 {
	if len(z.Points) < protocol.MinZonePoints {
		return 0
	}
	return polygonArea(toVecs(z.Points))
}

// Coverage is the fraction of the zone area that lies inside b.
func Coverage(z protocol.ZoneConfig, b Box) float64 {
	area := Area(z)
	if area == 0 {
		return 0
	}
	b = b.normalized()
	poly := toVecs(z.Points)
	inside := []func(vec) bool{
		func(p vec) bool { return p.x >= b.X1 },
		func(p vec) bool { return p.x <= b.X2 },
		func(p vec) bool { return p.y >= b.Y1 },
		func(p vec) bool { return p.y <= b.Y2 },
	}
	cross := []func(a, c vec) vec{
		func(a, c vec) vec { return atX(a, c, b.X1) },
		func(a, c vec) vec { return atX(a, c, b.X2) },
		func(a, c vec) vec { return atY(a, c, b.Y1) },
		func(a, c vec) vec { return atY(a, c, b.Y2) },
	}
	for edge := range inside {
		poly = clip(poly, inside[edge], cross[edge])
		if len(poly) < 3 {
			return 0
		}
	}
	return polygonArea(poly) / area
}

// clip is one Sutherland-Hodgman pass against a single box edge.
func clip(poly []vec, in func(vec) bool, cross func(a, b vec) vec) []vec {
	out := make([]vec, 0, len(poly)+2)
	for i := range poly {
		cur, prev := poly[i], poly[(i+len(poly)-1)%len(poly)]
		switch {
		case in(cur) && in(prev):
			out = append(out, cur)
		case in(cur):
			out = append(out, cross(prev, cur), cur)
		case in(prev):
			out = append(out, cross(prev, cur))
		}
	}
	return out
}

func atX(a, b vec, x float64) vec {
	t := (x - a.x) / (b.x - a.x)
	return vec{x, a.y + t*(b.y-a.y)}
}

func atY(a, b vec, y float64) vec {
	t := (y - a.y) / (b.y - a.y)
	return vec{a.x + t*(b.x-a.x), y}
}

// Contains reports whether p lies strictly inside the zone polygon.
func Contains(z protocol.ZoneConfig, p protocol.Point) bool {
	if len(z.Points) < protocol.MinZonePoints {
		return false
	}
	poly := toVecs(z.Points)
	x, y := float64(p.X), float64(p.Y)
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.y > y) != (b.y > y) && x < (b.x-a.x)*(y-a.y)/(b.y-a.y)+a.x {
			in = !in
		}
	}
	return in
}
