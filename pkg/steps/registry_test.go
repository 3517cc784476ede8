package steps

import (
	"errors"
	"testing"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry()
	want := []string{
		"discover", "retrieve", "convert", "plot", "calibrate-flag",
		"ms-operations", "format-convert", "archive", "pipeline-prep",
		"pipeline-run", "pipeline-check", "finalize",
	}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("catalogue has %d steps, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryUnknownStep(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Get("fringe-fit")
	var unk *UnknownStepError
	if !errors.As(err, &unk) {
		t.Fatalf("error type = %T, want *UnknownStepError", err)
	}
	if unk.Name != "fringe-fit" {
		t.Errorf("error names %q", unk.Name)
	}
}

func TestRegistryRange(t *testing.T) {
	r := DefaultRegistry()

	defs, err := r.Range("retrieve", "plot")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(defs) != 3 || defs[0].Name != "retrieve" || defs[2].Name != "plot" {
		t.Errorf("range retrieve..plot = %v", names(defs))
	}

	// Open boundaries default to the catalogue edges.
	defs, err = r.Range("", "convert")
	if err != nil || defs[0].Name != "discover" || defs[len(defs)-1].Name != "convert" {
		t.Errorf("range ..convert = %v, %v", names(defs), err)
	}
	defs, err = r.Range("archive", "")
	if err != nil || defs[0].Name != "archive" || defs[len(defs)-1].Name != "finalize" {
		t.Errorf("range archive.. = %v, %v", names(defs), err)
	}

	// A single step is a valid range.
	defs, err = r.Range("plot", "plot")
	if err != nil || len(defs) != 1 {
		t.Errorf("range plot..plot = %v, %v", names(defs), err)
	}
}

func TestRegistryRangeReversed(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Range("plot", "retrieve")
	var inv *InvalidStepRangeError
	if !errors.As(err, &inv) {
		t.Fatalf("error type = %T, want *InvalidStepRangeError", err)
	}
}

func TestRegistryLastIgnoresAdHocRecords(t *testing.T) {
	r := DefaultRegistry()
	e, _ := experiment.New("n19c3", "tester")

	if got := r.Last(e); got != "" {
		t.Errorf("Last on fresh experiment = %q, want empty", got)
	}

	e.Record("discover", &experiment.StepRecord{Status: experiment.StepDone})
	e.Record("retrieve", &experiment.StepRecord{Status: experiment.StepDone})
	// Ad-hoc exec output must not move the cursor.
	e.Record("checklis", &experiment.StepRecord{Status: experiment.StepDone})

	if got := r.Last(e); got != "retrieve" {
		t.Errorf("Last = %q, want retrieve", got)
	}
}

func TestRegistryResume(t *testing.T) {
	r := DefaultRegistry()
	e, _ := experiment.New("n19c3", "tester")
	e.Record("discover", &experiment.StepRecord{Status: experiment.StepDone})

	rest := r.Resume(e)
	if len(rest) == 0 || rest[0].Name != "retrieve" {
		t.Errorf("resume after discover starts at %v", names(rest))
	}

	if fresh := r.Resume(&experiment.Experiment{StoredOutputs: map[string]*experiment.StepRecord{}}); len(fresh) != 12 {
		t.Errorf("fresh resume covers %d steps, want 12", len(fresh))
	}
}

func TestShouldRunPipelineGuard(t *testing.T) {
	r := DefaultRegistry()
	e, _ := experiment.New("n19c3", "tester")
	def, _ := r.Get("pipeline-run")

	ok, err := r.ShouldRun(def, e)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("pipeline-run should be skipped with no pipelined passes")
	}

	e.Passes = []experiment.CorrelatorPass{{LisFile: "n19c3.lis", Pipeline: true}}
	ok, err = r.ShouldRun(def, e)
	if err != nil || !ok {
		t.Errorf("pipeline-run with a pipelined pass = %v, %v", ok, err)
	}
}

func TestNewRegistryRejectsBrokenChain(t *testing.T) {
	_, err := NewRegistry([]Definition{
		{Name: "a"},
		{Name: "b", Predecessor: "a"},
		{Name: "c", Predecessor: "a"},
	})
	if err == nil {
		t.Fatal("out-of-order predecessor accepted")
	}
}

func names(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}
