// Package geom holds the float vector math shared by the world, the pawn and
// the movement layer. Units are engine units; Z is up.
package geom

import "math"

// Vector is a 3D vector in engine units
type Vector struct {
	X, Y, Z float64
}

// Zero is the origin
var Zero = Vector{}

// Vec is shorthand for Vector{X: x, Y: y, Z: z}
func Vec(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// Add returns v + o
func (v Vector) Add(o Vector) Vector {
	return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o
func (v Vector) Sub(o Vector) Vector {
	return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s
func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product
func (v Vector) Cross(o Vector) Vector {
	return Vector{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the euclidean length
func (v Vector) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Length2D returns the horizontal length, ignoring Z
func (v Vector) Length2D() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalized returns a unit vector, or zero for a zero vector
func (v Vector) Normalized() Vector {
	l := v.Length()
	if l == 0 {
		return Vector{}
	}
	return v.Scale(1 / l)
}

// At returns the component at index i (0=X, 1=Y, 2=Z)
func (v Vector) At(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// With returns a copy of v with component i replaced
func (v Vector) With(i int, value float64) Vector {
	switch i {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

// IsZero reports whether every component is exactly zero
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// QAngle is a pitch/yaw/roll triple in degrees
type QAngle struct {
	Pitch, Yaw, Roll float64
}

// IsZero reports whether every component is exactly zero
func (a QAngle) IsZero() bool {
	return a.Pitch == 0 && a.Yaw == 0 && a.Roll == 0
}

// RotateYaw rotates v around the Z axis by yaw degrees
func RotateYaw(v Vector, yaw float64) Vector {
	rad := yaw * math.Pi / 180
	s, c := math.Sincos(rad)
	return Vector{
		X: v.X*c - v.Y*s,
		Y: v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// Forward returns the unit direction for a yaw angle on the horizontal plane
func Forward(yaw float64) Vector {
	return RotateYaw(Vector{X: 1}, yaw)
}

// BBox is an axis-aligned box relative to an origin
type BBox struct {
	Mins, Maxs Vector
}

// Abs returns the box translated to world space at origin
func (b BBox) Abs(origin Vector) BBox {
	return BBox{Mins: origin.Add(b.Mins), Maxs: origin.Add(b.Maxs)}
}

// Contains reports whether p lies inside the box (inclusive)
func (b BBox) Contains(p Vector) bool {
	return p.X >= b.Mins.X && p.X <= b.Maxs.X &&
		p.Y >= b.Mins.Y && p.Y <= b.Maxs.Y &&
		p.Z >= b.Mins.Z && p.Z <= b.Maxs.Z
}

// Expand grows the box by the extents of o (Minkowski sum of two AABBs)
func (b BBox) Expand(o BBox) BBox {
	return BBox{
		Mins: b.Mins.Sub(o.Maxs),
		Maxs: b.Maxs.Sub(o.Mins),
	}
}

// Center returns the middle of the box
func (b BBox) Center() Vector {
	return b.Mins.Add(b.Maxs).Scale(0.5)
}
