package math

import "github.com/chewxy/math32"

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3One() Vec3 {
	return Vec3{X: 1, Y: 1, Z: 1}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{X: v.X * other.X, Y: v.Y * other.Y, Z: v.Z * other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.MulScalar(1.0 / l)
}

func NewQuatIdentity() Quaternion {
	return Quaternion{W: 1}
}

// NewQuatFromAxisAngle builds a rotation of angle radians around axis.
func NewQuatFromAxisAngle(axis Vec3, angle float32) Quaternion {
	half := angle * 0.5
	s := math32.Sin(half)
	return Quaternion{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math32.Cos(half),
	}
}

func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

func (q Quaternion) Normalized() Quaternion {
	l := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return NewQuatIdentity()
	}
	inv := 1.0 / l
	return Quaternion{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

func NewMat4Identity() Mat4 {
	m := Mat4{}
	m.Data[0] = 1.0
	m.Data[5] = 1.0
	m.Data[10] = 1.0
	m.Data[15] = 1.0
	return m
}

// Mul returns the result of multiplying m by other.
func (m Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += m.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

// MulVec3 transforms p as a point (w = 1).
func (m Mat4) MulVec3(p Vec3) Vec3 {
	return Vec3{
		X: m.Data[0]*p.X + m.Data[1]*p.Y + m.Data[2]*p.Z + m.Data[3],
		Y: m.Data[4]*p.X + m.Data[5]*p.Y + m.Data[6]*p.Z + m.Data[7],
		Z: m.Data[8]*p.X + m.Data[9]*p.Y + m.Data[10]*p.Z + m.Data[11],
	}
}

// NewMat4Translation builds a translation matrix from position.
func NewMat4Translation(position Vec3) Mat4 {
	m := NewMat4Identity()
	m.Data[3] = position.X
	m.Data[7] = position.Y
	m.Data[11] = position.Z
	return m
}

// NewMat4Scale builds a scale matrix.
func NewMat4Scale(scale Vec3) Mat4 {
	m := NewMat4Identity()
	m.Data[0] = scale.X
	m.Data[5] = scale.Y
	m.Data[10] = scale.Z
	return m
}

// NewMat4FromQuaternion builds a rotation matrix from a normalized
// quaternion.
func NewMat4FromQuaternion(q Quaternion) Mat4 {
	n := q.Normalized()
	m := NewMat4Identity()

	m.Data[0] = 1.0 - 2.0*n.Y*n.Y - 2.0*n.Z*n.Z
	m.Data[1] = 2.0*n.X*n.Y - 2.0*n.Z*n.W
	m.Data[2] = 2.0*n.X*n.Z + 2.0*n.Y*n.W

	m.Data[4] = 2.0*n.X*n.Y + 2.0*n.Z*n.W
	m.Data[5] = 1.0 - 2.0*n.X*n.X - 2.0*n.Z*n.Z
	m.Data[6] = 2.0*n.Y*n.Z - 2.0*n.X*n.W

	m.Data[8] = 2.0*n.X*n.Z - 2.0*n.Y*n.W
	m.Data[9] = 2.0*n.Y*n.Z + 2.0*n.X*n.W
	m.Data[10] = 1.0 - 2.0*n.X*n.X - 2.0*n.Y*n.Y

	return m
}

func RadToDeg(rad float32) float32 {
	return rad * 180.0 / math32.Pi
}

func DegToRad(deg float32) float32 {
	return deg * math32.Pi / 180.0
}
