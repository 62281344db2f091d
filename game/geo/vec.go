// Package geo holds the minimal vector math the zone simulation needs.
package geo

import "math"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) DistanceTo(o Vec3) float64 { return v.Sub(o).Length() }

// Normalized returns the unit vector, or the zero vector unchanged.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// YawDir converts a yaw in degrees into a flat forward vector.
func YawDir(yawDeg float64) Vec3 {
	rad := yawDeg * math.Pi / 180
	return Vec3{X: math.Cos(rad), Y: math.Sin(rad)}
}
