package steps

import (
	"testing"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

func TestParseMasterProjectsPlain(t *testing.T) {
	e, _ := experiment.New("n19c3", "tester")
	if err := parseMasterProjects(e, "N19C3 20190312\n"); err != nil {
		t.Fatal(err)
	}
	if e.ObsDate != "190312" {
		t.Errorf("obsdate = %q, want 190312", e.ObsDate)
	}
	if e.AltName != "" {
		t.Errorf("alt name = %q, want empty", e.AltName)
	}
}

func TestParseMasterProjectsEEVNMember(t *testing.T) {
	e, _ := experiment.New("eb032", "tester")
	out := "EB032 20200204\nE20A1 20200204 EB032 RSM04\n"
	if err := parseMasterProjects(e, out); err != nil {
		t.Fatal(err)
	}
	if e.ObsDate != "200204" {
		t.Errorf("obsdate = %q", e.ObsDate)
	}
	if e.AltName != "E20A1" {
		t.Errorf("alt name = %q, want E20A1", e.AltName)
	}
}

func TestParseMasterProjectsEEVNOwner(t *testing.T) {
	// A single line with extra columns means the run carries this name.
	e, _ := experiment.New("e20a1", "tester")
	if err := parseMasterProjects(e, "E20A1 20200204 EB032 RSM04\n"); err != nil {
		t.Fatal(err)
	}
	if e.AltName != "E20A1" {
		t.Errorf("alt name = %q", e.AltName)
	}
	if e.ObsDate != "200204" {
		t.Errorf("obsdate = %q", e.ObsDate)
	}
}

func TestParseMasterProjectsMissing(t *testing.T) {
	e, _ := experiment.New("zz999", "tester")
	if err := parseMasterProjects(e, ""); err == nil {
		t.Fatal("empty grep output accepted")
	}
}

const sampleExpsum = `Project: N19C3
Principal Investigator: Surname  (surname@example.org)
co-I information: Other (other@example.org)
scheduled telescopes: Ef Hh Jb2 O8 Ys
20 correlator passes
src = J1154+6022, type = target (xxx), use = NO (yyy)
src = J1159+5820, type = reference (xxx), use = YES (yyy)
src = 3C345, type = fringefinder (xxx), use = YES (yyy)
src = 3C345, type = fringefinder (xxx), use = YES (yyy)
`

func TestParseExpsum(t *testing.T) {
	e, _ := experiment.New("n19c3", "tester")
	if err := ParseExpsum(e, sampleExpsum); err != nil {
		t.Fatal(err)
	}

	if len(e.PINames) != 2 || e.PINames[0] != "Surname" || e.Emails[1] != "other@example.org" {
		t.Errorf("PIs = %v / %v", e.PINames, e.Emails)
	}
	if len(e.Antennas) != 5 {
		t.Fatalf("antennas = %v", e.Antennas)
	}
	if a := e.AntennaByName("Jb2"); a == nil || !a.Scheduled {
		t.Error("Jb2 not scheduled")
	}

	if len(e.Sources) != 3 {
		t.Fatalf("sources = %v (duplicates must collapse)", e.Sources)
	}
	target := e.SourceByName("J1154+6022")
	if target == nil || target.Type != experiment.SourceTarget || !target.Protected {
		t.Errorf("target source = %+v (use = NO means protected)", target)
	}
	cal := e.SourceByName("J1159+5820")
	if cal == nil || cal.Type != experiment.SourceCalibrator || cal.Protected {
		t.Errorf("reference source = %+v", cal)
	}
	if ff := e.SourcesOfType(experiment.SourceFringeFind); len(ff) != 1 || ff[0] != "3C345" {
		t.Errorf("fringe finders = %v", ff)
	}
}

func TestParseExpsumRejectsUnknownUse(t *testing.T) {
	e, _ := experiment.New("n19c3", "tester")
	err := ParseExpsum(e, "src = X, type = target (x), use = MAYBE (y)\n")
	if err == nil {
		t.Fatal("unknown use value accepted")
	}
}
