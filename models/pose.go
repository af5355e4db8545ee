package models

import (
	"math"

	"github.com/google/uuid"
)

// Pose is a player's head transform: position plus orientation quaternion
// (x, y, z, w). The head points down negative Z in its local frame.
type Pose struct {
	Position    [3]float32
	Orientation [4]float32
}

// IdentityPose returns a pose at the origin with the identity orientation.
func IdentityPose() Pose {
	return Pose{Orientation: [4]float32{0, 0, 0, 1}}
}

// Finite reports whether every component is a finite number. Poses carrying
// NaN or Inf are never applied to authoritative state.
func (p Pose) Finite() bool {
	for _, v := range p.Position {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	for _, v := range p.Orientation {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// PlayerState is one snapshot entry: a player and their latest pose.
type PlayerState struct {
	ID   uuid.UUID
	Pose Pose
}
