package math

// Transform holds a local TRS decomposition. Mutations mark it dirty; the
// local matrix is recomposed on demand.
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3

	// Indicates that position, rotation or scale have changed and the local
	// matrix needs to be recalculated.
	IsDirty bool
	local   Mat4
}

func TransformCreate() Transform {
	return Transform{
		Position: NewVec3Zero(),
		Rotation: NewQuatIdentity(),
		Scale:    NewVec3One(),
		IsDirty:  true,
		local:    NewMat4Identity(),
	}
}

func TransformFromPosition(position Vec3) Transform {
	t := TransformCreate()
	t.Position = position
	return t
}

func TransformFromPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) Transform {
	t := TransformCreate()
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	return t
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
	t.IsDirty = true
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
	t.IsDirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

// Local returns the cached local matrix, recomposing T·R·S if dirty.
func (t *Transform) Local() Mat4 {
	if t.IsDirty {
		tr := NewMat4Translation(t.Position)
		rot := NewMat4FromQuaternion(t.Rotation)
		sc := NewMat4Scale(t.Scale)
		t.local = tr.Mul(rot).Mul(sc)
		t.IsDirty = false
	}
	return t.local
}
