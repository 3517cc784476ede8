package experiment

import (
	"errors"
	"testing"
)

func TestEditRefAnt(t *testing.T) {
	e := testExperiment(t)
	if err := e.Edit("refant", "Ef, O8"); err != nil {
		t.Fatalf("edit refant: %v", err)
	}
	if len(e.RefAnts) != 2 || e.RefAnts[0] != "Ef" || e.RefAnts[1] != "O8" {
		t.Errorf("RefAnts = %v", e.RefAnts)
	}
}

func TestEditRefAntBadCode(t *testing.T) {
	e := testExperiment(t)
	err := e.Edit("refant", "EFLS")
	var inv *InvalidValueError
	if !errors.As(err, &inv) {
		t.Fatalf("error type = %T, want *InvalidValueError", err)
	}
	if len(e.RefAnts) != 0 {
		t.Error("rejected edit must not modify the experiment")
	}
}

func TestEditPolswapFlagsAntennas(t *testing.T) {
	e := testExperiment(t)
	if err := e.Edit("polswap", "Ef"); err != nil {
		t.Fatalf("edit polswap: %v", err)
	}
	if !e.AntennaByName("Ef").PolSwap {
		t.Error("Ef not flagged for polswap")
	}
	if e.AntennaByName("O8").PolSwap {
		t.Error("O8 flagged without being named")
	}
}

func TestEditPolswapUnknownAntenna(t *testing.T) {
	e := testExperiment(t)
	err := e.Edit("polswap", "Ef, Wb")
	var inv *InvalidValueError
	if !errors.As(err, &inv) {
		t.Fatalf("error type = %T", err)
	}
	if e.AntennaByName("Ef").PolSwap {
		t.Error("partial edit applied before validation failure")
	}
}

func TestEditCalsources(t *testing.T) {
	e := testExperiment(t)
	if err := e.Edit("calsources", "3C345, DA193"); err != nil {
		t.Fatalf("edit calsources: %v", err)
	}
	if len(e.RefSources) != 2 {
		t.Errorf("RefSources = %v", e.RefSources)
	}
	if err := e.Edit("calsources", "3C999"); err == nil {
		t.Error("unknown source accepted")
	}
}

func TestEditSourceRole(t *testing.T) {
	e := testExperiment(t)
	if err := e.Edit("source:3C345", "calibrator"); err != nil {
		t.Fatalf("edit source role: %v", err)
	}
	if e.SourceByName("3C345").Type != SourceCalibrator {
		t.Error("role not updated")
	}

	// A role outside the closed set is rejected and nothing changes.
	err := e.Edit("source:3C345", "amplitude-calibrator")
	var inv *InvalidValueError
	if !errors.As(err, &inv) {
		t.Fatalf("error type = %T, want *InvalidValueError", err)
	}
	if e.SourceByName("3C345").Type != SourceCalibrator {
		t.Error("rejected role edit modified the source")
	}
}

func TestEditUnknownField(t *testing.T) {
	e := testExperiment(t)
	err := e.Edit("obsdate", "190312")
	var unk *UnknownFieldError
	if !errors.As(err, &unk) {
		t.Fatalf("error type = %T, want *UnknownFieldError", err)
	}
}

func TestEditPIAndEmail(t *testing.T) {
	e := testExperiment(t)
	if err := e.Edit("pi", "A. Observer, B. Author"); err != nil {
		t.Fatal(err)
	}
	if err := e.Edit("email", "a@example.org, b@example.org"); err != nil {
		t.Fatal(err)
	}
	if len(e.PINames) != 2 || len(e.Emails) != 2 {
		t.Errorf("pi = %v, email = %v", e.PINames, e.Emails)
	}
}
