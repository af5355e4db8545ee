package models

import (
	"math"
	"testing"
)

func TestIdentityPoseIsFinite(t *testing.T) {
	p := IdentityPose()
	if !p.Finite() {
		t.Fatal("identity pose reported non-finite")
	}
	if p.Orientation != [4]float32{0, 0, 0, 1} {
		t.Fatalf("identity orientation = %v", p.Orientation)
	}
}

func TestFiniteRejectsNaNAndInf(t *testing.T) {
	for i := 0; i < 3; i++ {
		p := IdentityPose()
		p.Position[i] = float32(math.NaN())
		if p.Finite() {
			t.Fatalf("NaN at position[%d] passed the finite check", i)
		}
	}
	for i := 0; i < 4; i++ {
		p := IdentityPose()
		p.Orientation[i] = float32(math.Inf(-1))
		if p.Finite() {
			t.Fatalf("-Inf at orientation[%d] passed the finite check", i)
		}
	}
}
