package math

// Vec3 represents a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Quaternion represents a rotational orientation.
type Quaternion struct {
	X, Y, Z, W float32
}

// Mat4 is a 4x4 row-major matrix, typically used to represent object
// transformations.
type Mat4 struct {
	Data [16]float32
}

// Extents3D represents the extents of a 3D object.
type Extents3D struct {
	Min Vec3
	Max Vec3
}
