package world

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ShapeKind tags the variant carried by Geometry.
type ShapeKind int

const (
	// KindMesh is a plain static or skeletal mesh body.
	KindMesh ShapeKind = iota
	// KindBox is a box collision volume.
	KindBox
	// KindSphere is a sphere collision volume.
	KindSphere
	// KindBone is a collision volume bound to one skeletal bone.
	KindBone
)

func (k ShapeKind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindBox:
		return "box"
	case KindSphere:
		return "sphere"
	case KindBone:
		return "bone"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// ParseShapeKind parses the names produced by ShapeKind.String.
func ParseShapeKind(s string) (ShapeKind, error) {
	switch s {
	case "mesh", "":
		return KindMesh, nil
	case "box":
		return KindBox, nil
	case "sphere":
		return KindSphere, nil
	case "bone":
		return KindBone, nil
	}
	return KindMesh, fmt.Errorf("unknown shape kind %q", s)
}

// Geometry is the runtime-relevant part of a collision volume.
// Extent is used by boxes, Radius by spheres and bones.
type Geometry struct {
	Kind   ShapeKind
	Extent r3.Vec
	Radius float64
}

// Box returns box geometry with the given half extents.
func Box(extent r3.Vec) Geometry { return Geometry{Kind: KindBox, Extent: extent} }

// Sphere returns sphere geometry.
func Sphere(radius float64) Geometry { return Geometry{Kind: KindSphere, Radius: radius} }

// Mesh returns plain mesh geometry.
func Mesh() Geometry { return Geometry{Kind: KindMesh} }

// IsContactVolume reports whether the geometry is a box or sphere volume
// that can host a contact monitor.
func (g Geometry) IsContactVolume() bool {
	return g.Kind == KindBox || g.Kind == KindSphere
}

// Valid reports whether the variant carries usable parameters.
func (g Geometry) Valid() bool {
	switch g.Kind {
	case KindBox:
		return g.Extent.X > 0 && g.Extent.Y > 0 && g.Extent.Z > 0
	case KindSphere, KindBone:
		return g.Radius > 0
	default:
		return true
	}
}

// Distance is the euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// DistXY is the horizontal distance between a and b.
func DistXY(a, b r3.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
