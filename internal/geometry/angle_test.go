package geometry

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestAngleArithmetic(t *testing.T) {
	if got := AngleE.Opposite(); got != AngleW {
		t.Errorf("E.Opposite() = %s", got)
	}
	if got := AngleENE.Add(AngleSE); got != AngleESE {
		t.Errorf("ENE+SE = %s", got)
	}
	if got := AngleE.Sub(AngleESE); got != AngleENE {
		t.Errorf("E-ESE = %s", got)
	}
	if !AngleN.IsParallel(AngleS) || AngleN.IsParallel(AngleE) {
		t.Error("IsParallel")
	}
	if !AngleE.IsSimilar(AngleENE) || !AngleE.IsSimilar(AngleESE) || AngleE.IsSimilar(AngleSE) {
		t.Error("IsSimilar")
	}
	if got := AngleE.Steps(AngleNE); got != -2 {
		t.Errorf("E.Steps(NE) = %d, want -2", got)
	}
	if got := AngleE.Steps(AngleW); got != 8 {
		t.Errorf("E.Steps(W) = %d, want 8", got)
	}
}

func TestAngleTables(t *testing.T) {
	if AngleS.Cos() != 0 || AngleS.Sin() != 1 {
		t.Errorf("S = (%g, %g)", AngleS.Cos(), AngleS.Sin())
	}
	if AngleW.Sin() != 0 || AngleW.Cos() != -1 {
		t.Errorf("W = (%g, %g)", AngleW.Cos(), AngleW.Sin())
	}
	if got := AngleFromVector(-1, -1); got != AngleNW {
		t.Errorf("AngleFromVector(-1,-1) = %s", got)
	}
	if got := AngleFromDegrees(-22.5); got != AngleENE {
		t.Errorf("AngleFromDegrees(-22.5) = %s", got)
	}
}

func TestAngleJSON(t *testing.T) {
	data, err := json.Marshal(AngleSSW)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "112.5" {
		t.Errorf("Marshal = %s", data)
	}
	var a Angle
	if err := json.Unmarshal([]byte("270"), &a); err != nil || a != AngleN {
		t.Errorf("Unmarshal(270) = %s, %v", a, err)
	}
	if err := json.Unmarshal([]byte("30"), &a); err == nil {
		t.Error("expected error for 30 degrees")
	}
}

func TestAngleYAML(t *testing.T) {
	var e struct {
		Angle Angle `yaml:"angle"`
	}
	if err := yaml.Unmarshal([]byte("angle: 180"), &e); err != nil || e.Angle != AngleW {
		t.Errorf("Unmarshal(180) = %s, %v", e.Angle, err)
	}
	if err := yaml.Unmarshal([]byte("angle: 10"), &e); err == nil {
		t.Error("expected error for 10 degrees")
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "angle: 180\n" {
		t.Errorf("Marshal = %q", data)
	}
}
