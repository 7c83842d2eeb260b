package math

/**
 * @brief Creates the smallest extents containing every point.
 * Returns empty extents when no point is given.
 */
func NewExtents3DFromPoints(points ...Vec3) Extents3D {
	if len(points) == 0 {
		return NewExtents3DEmpty()
	}
	e := Extents3D{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		e.Min = e.Min.Min(p)
		e.Max = e.Max.Max(p)
	}
	return e
}

/**
 * @brief Creates inverted extents that contain nothing. Union with anything
 * yields the other extents.
 */
func NewExtents3DEmpty() Extents3D {
	return Extents3D{
		Min: Vec3{K_INFINITY, K_INFINITY, K_INFINITY},
		Max: Vec3{-K_INFINITY, -K_INFINITY, -K_INFINITY},
	}
}

// IsEmpty reports whether the extents are inverted on any axis.
func (e Extents3D) IsEmpty() bool {
	return e.Min.X > e.Max.X || e.Min.Y > e.Max.Y || e.Min.Z > e.Max.Z
}

func (e Extents3D) Center() Vec3 {
	return e.Min.Add(e.Max).MulScalar(0.5)
}

func (e Extents3D) Size() Vec3 {
	return e.Max.Sub(e.Min)
}

func (e Extents3D) Contains(p Vec3) bool {
	return p.X >= e.Min.X && p.X <= e.Max.X &&
		p.Y >= e.Min.Y && p.Y <= e.Max.Y &&
		p.Z >= e.Min.Z && p.Z <= e.Max.Z
}

// Intersects reports whether the two extents overlap. Touching faces count.
func (e Extents3D) Intersects(other Extents3D) bool {
	if e.IsEmpty() || other.IsEmpty() {
		return false
	}
	return e.Min.X <= other.Max.X && e.Max.X >= other.Min.X &&
		e.Min.Y <= other.Max.Y && e.Max.Y >= other.Min.Y &&
		e.Min.Z <= other.Max.Z && e.Max.Z >= other.Min.Z
}

func (e Extents3D) Union(other Extents3D) Extents3D {
	return Extents3D{
		Min: e.Min.Min(other.Min),
		Max: e.Max.Max(other.Max),
	}
}
