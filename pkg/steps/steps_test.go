package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jive-vlbi/evnpp/pkg/config"
	"github.com/jive-vlbi/evnpp/pkg/dialog"
	"github.com/jive-vlbi/evnpp/pkg/experiment"
	"github.com/jive-vlbi/evnpp/pkg/logging"
	"github.com/jive-vlbi/evnpp/pkg/remote"
)

// fakeExecutor records everything and serves canned stdout keyed by a
// substring of the command line.
type fakeExecutor struct {
	remote.DryRunExecutor
	stdout map[string]string
	exists map[string]bool
}

func (f *fakeExecutor) Execute(ctx context.Context, host, command string, args ...string) (*remote.Result, error) {
	res, err := f.DryRunExecutor.Execute(ctx, host, command, args...)
	if err != nil {
		return res, err
	}
	for key, out := range f.stdout {
		if strings.Contains(res.Command, key) {
			res.Stdout = []byte(out)
		}
	}
	return res, nil
}

func (f *fakeExecutor) FileExists(ctx context.Context, host, path string) (bool, error) {
	if f.exists == nil {
		return false, nil
	}
	for key, ok := range f.exists {
		if strings.Contains(path, key) {
			return ok, nil
		}
	}
	return false, nil
}

func testSetup(t *testing.T, gate dialog.Gate, exec remote.Executor) (*config.Settings, *experiment.Experiment, func(name string) *Context) {
	t.Helper()
	cfg := &config.Settings{SupSci: "tester", DataRoot: t.TempDir()}
	cfg.Hosts.Correlator = "ccs"
	cfg.Hosts.Processing = "local"
	cfg.Hosts.Pipeline = "pipe"
	cfg.Hosts.Archive = "archive.jive.eu"
	cfg.Paths.CcsExpDir = "/ccs/expr/{EXP}"
	cfg.Paths.PipelineIn = "/jop83_0/pipe/in/{supsci}/{exp}"
	cfg.Paths.PipelineOut = "/jop83_0/pipe/out/{exp}"

	e, err := experiment.New("n19c3", "tester")
	if err != nil {
		t.Fatal(err)
	}
	e.ObsDate = "190312"
	e.Sources = []experiment.Source{
		{Name: "3C345", Type: experiment.SourceFringeFind},
		{Name: "J1154+6022", Type: experiment.SourceTarget, Protected: true},
	}
	e.Antennas = []experiment.Antenna{
		{Name: "Ef", Scheduled: true, Observed: true},
		{Name: "O8", Scheduled: true, Observed: true},
	}
	e.Passes = []experiment.CorrelatorPass{
		{LisFile: "n19c3.lis", MSFile: "n19c3.ms", FitsIDIFile: "n19c3_1_1.IDI", Pipeline: true},
	}
	if err := os.MkdirAll(cfg.ExpDir(e.Name), 0o755); err != nil {
		t.Fatal(err)
	}

	reg := DefaultRegistry()
	mk := func(name string) *Context {
		def, err := reg.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		return NewContext(context.Background(), def, e, cfg, exec, gate, logging.Nop())
	}
	return cfg, e, mk
}

// failingStatExecutor breaks every file-existence probe, as a dropped ssh
// connection would.
type failingStatExecutor struct {
	fakeExecutor
}

func (f *failingStatExecutor) FileExists(ctx context.Context, host, path string) (bool, error) {
	return false, errors.New("ssh: connect to host ccs: connection timed out")
}

func TestStepDiscoverPropagatesExistenceCheckFailure(t *testing.T) {
	exec := &failingStatExecutor{fakeExecutor{stdout: map[string]string{"grep": "N19C3 20190312\n"}}}
	_, _, mk := testSetup(t, dialog.NewScriptedGate(), exec)

	err := stepDiscover(mk("discover"))
	if err == nil {
		t.Fatal("transport failure read as file absent")
	}
	if !strings.Contains(err.Error(), "piletter") || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want the failing check named", err)
	}
}

func TestStepRetrievePropagatesExistenceCheckFailure(t *testing.T) {
	exec := &failingStatExecutor{}
	_, _, mk := testSetup(t, dialog.NewScriptedGate(), exec)

	err := stepRetrieve(mk("retrieve"))
	if err == nil || !strings.Contains(err.Error(), "line pass") {
		t.Fatalf("err = %v, want the line pass check named", err)
	}
}

func TestStepRetrieveChecklisRepeat(t *testing.T) {
	exec := &fakeExecutor{stdout: map[string]string{"checklis": "all ok"}}
	gate := dialog.NewScriptedGate("repeat")
	_, _, mk := testSetup(t, gate, exec)

	err := stepRetrieve(mk("retrieve"))
	if !errors.Is(err, ErrRepeatStep) {
		t.Fatalf("checkpoint repeat should surface ErrRepeatStep, got %v", err)
	}
}

func TestStepRetrieveDerivesPasses(t *testing.T) {
	exec := &fakeExecutor{exists: map[string]bool{"_line.lis": true}}
	gate := dialog.NewScriptedGate("ok")
	_, e, mk := testSetup(t, gate, exec)

	c := mk("retrieve")
	if err := stepRetrieve(c); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(e.Passes) != 2 {
		t.Fatalf("passes = %d, want 2 (continuum + line)", len(e.Passes))
	}
	if e.Passes[0].FitsIDIFile != "n19c3_1_1.IDI" || e.Passes[1].FitsIDIFile != "n19c3_2_1.IDI" {
		t.Errorf("IDI names = %q, %q", e.Passes[0].FitsIDIFile, e.Passes[1].FitsIDIFile)
	}
	if !e.Passes[0].Pipeline || !e.Passes[1].Pipeline {
		t.Error("both passes go to the pipeline when a line pass exists")
	}
	if c.Value("passes") != "2" {
		t.Errorf("recorded passes = %q", c.Value("passes"))
	}
}

func TestDerivePassesSinglePass(t *testing.T) {
	e, _ := experiment.New("eb032", "tester")
	passes := derivePasses(e, []string{"eb032.lis"})
	if len(passes) != 1 || !passes[0].Pipeline || passes[0].MSFile != "eb032.ms" {
		t.Errorf("passes = %+v", passes)
	}

	passes = derivePasses(e, []string{"eb032.lis", "eb032_2.lis"})
	if passes[0].Pipeline == passes[1].Pipeline {
		t.Error("without a line pass only the first pass is pipelined")
	}
}

const sampleMSInfo = `start 2019-03-12T14:00:00
end 2019-03-12T20:00:00
sources J1154+6022 J1159+5820 3C345
antennas Ef O8
subbands 2
channels 32 32
bandwidths 16000000.0 16000000.0
frequencies 1626490000.0 1626490062.5
frequencies 1642490000.0 1642490062.5
`

func TestStepConvertReadsMSMetadata(t *testing.T) {
	exec := &fakeExecutor{stdout: map[string]string{"casacore": sampleMSInfo}}
	_, e, mk := testSetup(t, dialog.NewScriptedGate(), exec)
	e.Antennas = []experiment.Antenna{
		{Name: "Ef", Scheduled: true},
		{Name: "O8", Scheduled: true},
		{Name: "Tr", Scheduled: true},
	}

	c := mk("convert")
	if err := stepConvert(c); err != nil {
		t.Fatalf("convert: %v", err)
	}

	want := time.Date(2019, 3, 12, 14, 0, 0, 0, time.UTC)
	if !e.StartTime.Equal(want) {
		t.Errorf("start time = %v, want %v", e.StartTime, want)
	}
	if e.EndTime.Hour() != 20 {
		t.Errorf("end time = %v", e.EndTime)
	}

	p := e.Passes[0]
	if strings.Join(p.Sources, " ") != "J1154+6022 J1159+5820 3C345" {
		t.Errorf("pass sources = %v", p.Sources)
	}
	if p.FreqSetup == nil || p.FreqSetup.NSubbands != 2 {
		t.Fatalf("freq setup = %+v", p.FreqSetup)
	}
	if len(p.FreqSetup.Frequencies) != 2 || p.FreqSetup.Channels[0] != 32 {
		t.Errorf("subband rows = %+v", p.FreqSetup)
	}

	// Only the stations in the ANTENNA table are observed.
	if !e.AntennaByName("Ef").Observed || !e.AntennaByName("O8").Observed {
		t.Error("correlated stations not marked observed")
	}
	if e.AntennaByName("Tr").Observed {
		t.Error("station missing from the MS marked observed")
	}
}

func TestStepConvertFallsBackToSchedule(t *testing.T) {
	// A dry-run executor reports nothing from the measurement set.
	exec := &fakeExecutor{}
	_, e, mk := testSetup(t, dialog.NewScriptedGate(), exec)
	e.Antennas = []experiment.Antenna{
		{Name: "Ef", Scheduled: true},
		{Name: "Tr", Scheduled: false},
	}

	if err := stepConvert(mk("convert")); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !e.AntennaByName("Ef").Observed {
		t.Error("scheduled station not marked observed without metadata")
	}
	if e.AntennaByName("Tr").Observed {
		t.Error("unscheduled station marked observed")
	}
	if !e.StartTime.IsZero() || e.Passes[0].FreqSetup != nil {
		t.Error("metadata fields filled from an empty readout")
	}
}

func TestParseMSInfo(t *testing.T) {
	info, err := parseMSInfo(sampleMSInfo)
	if err != nil || info == nil {
		t.Fatalf("parse = %+v, %v", info, err)
	}
	if info.nsub != 2 || len(info.bandwidths) != 2 || len(info.antennas) != 2 {
		t.Errorf("info = %+v", info)
	}

	if info, err := parseMSInfo(""); err != nil || info != nil {
		t.Errorf("empty output = %+v, %v", info, err)
	}
	if _, err := parseMSInfo("channels 32 many"); err == nil {
		t.Error("malformed channel count accepted")
	}
}

func TestReadMSMetadataRejectsShortSetup(t *testing.T) {
	// Three subbands announced, two of everything delivered.
	exec := &fakeExecutor{stdout: map[string]string{"casacore": strings.Replace(
		sampleMSInfo, "subbands 2", "subbands 3", 1)}}
	_, _, mk := testSetup(t, dialog.NewScriptedGate(), exec)

	err := stepConvert(mk("convert"))
	if err == nil || !strings.Contains(err.Error(), "frequency setup") {
		t.Fatalf("err = %v, want frequency setup mismatch", err)
	}
}

func TestStepPlotUsesRefantAndFringeFinders(t *testing.T) {
	exec := &fakeExecutor{}
	gate := dialog.NewScriptedGate("ok")
	_, _, mk := testSetup(t, gate, exec)

	c := mk("plot")
	if err := stepPlot(c); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if c.Value("refant") != "Ef" {
		t.Errorf("refant = %q, want Ef", c.Value("refant"))
	}
	if c.Value("plotsources") != "3C345" {
		t.Errorf("plotsources = %q", c.Value("plotsources"))
	}
	joined := strings.Join(exec.Commands, "\n")
	if !strings.Contains(joined, "standardplots -weight n19c3.ms Ef 3C345") {
		t.Errorf("standardplots not run with weights:\n%s", joined)
	}
}

func TestStepPlotRepeatRunsAgain(t *testing.T) {
	exec := &fakeExecutor{}
	gate := dialog.NewScriptedGate("repeat")
	_, _, mk := testSetup(t, gate, exec)

	if err := stepPlot(mk("plot")); !errors.Is(err, ErrRepeatStep) {
		t.Fatalf("repeat answer should surface ErrRepeatStep, got %v", err)
	}
}

func TestStepCalibrateFlagParsesPercentage(t *testing.T) {
	exec := &fakeExecutor{stdout: map[string]string{
		"flag_weights": "... execution). 2.35% data with non-zero weights",
	}}
	gate := dialog.NewScriptedGate("0.9", "", "", "")
	_, e, mk := testSetup(t, gate, exec)

	c := mk("calibrate-flag")
	if err := stepCalibrateFlag(c); err != nil {
		t.Fatalf("calibrate-flag: %v", err)
	}
	if e.FlagWeights == nil || e.FlagWeights.Threshold != 0.9 {
		t.Fatalf("flag weights = %+v", e.FlagWeights)
	}
	if e.FlagWeights.Percentage != 2.35 {
		t.Errorf("percentage = %v, want 2.35", e.FlagWeights.Percentage)
	}
	if c.Value("threshold") != "0.9" {
		t.Errorf("threshold value = %q", c.Value("threshold"))
	}
}

func TestStepCalibrateFlagRejectsBadThreshold(t *testing.T) {
	exec := &fakeExecutor{}
	gate := dialog.NewScriptedGate("1.5")
	_, _, mk := testSetup(t, gate, exec)

	if err := stepCalibrateFlag(mk("calibrate-flag")); err == nil {
		t.Fatal("threshold outside (0,1) accepted")
	}
}

func TestParseFlaggedPercent(t *testing.T) {
	if pct, ok := parseFlaggedPercent("(execution). 1.5% data with non-zero weights"); !ok || pct != 1.5 {
		t.Errorf("parse = %v, %v", pct, ok)
	}
	if _, ok := parseFlaggedPercent("no report here"); ok {
		t.Error("matched absent report")
	}
}

func TestStepFormatConvertWithoutPolConvert(t *testing.T) {
	exec := &fakeExecutor{}
	gate := dialog.NewScriptedGate()
	_, _, mk := testSetup(t, gate, exec)

	c := mk("format-convert")
	if err := stepFormatConvert(c); err != nil {
		t.Fatalf("format-convert: %v", err)
	}
	if c.Value("polconverted") != "none" {
		t.Errorf("polconverted = %q", c.Value("polconverted"))
	}
	if !strings.Contains(strings.Join(exec.Commands, "\n"), "tConvert n19c3.ms n19c3_1_1.IDI") {
		t.Errorf("tConvert not run: %v", exec.Commands)
	}
}

func TestUpdatePILetter(t *testing.T) {
	dir := t.TempDir()
	e, _ := experiment.New("n19c3", "tester")
	fw, _ := experiment.NewFlagWeight(0.9)
	fw.Percentage = 2.3
	e.FlagWeights = fw

	expDir := filepath.Join(dir, "N19C3")
	if err := os.MkdirAll(expDir, 0o755); err != nil {
		t.Fatal(err)
	}
	letter := "Dear PI,\n***SuppSci: remove this if there is one***\n" +
		"A threshold of ***weight cutoff*** flagged ***percent flagged***% of the data.\n"
	path := filepath.Join(expDir, "n19c3.piletter")
	if err := os.WriteFile(path, []byte(letter), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := UpdatePILetter(expDir, e); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := os.ReadFile(path)
	text := string(got)
	if strings.Contains(text, "SuppSci") {
		t.Error("internal remark line survived")
	}
	if !strings.Contains(text, "0.9") || !strings.Contains(text, "2.3") {
		t.Errorf("placeholders not filled:\n%s", text)
	}
	if strings.Contains(text, "***") {
		t.Errorf("placeholder markers left:\n%s", text)
	}
}

func TestRunToolUnknownCommand(t *testing.T) {
	exec := &fakeExecutor{}
	_, _, mk := testSetup(t, dialog.NewScriptedGate(), exec)
	err := RunTool(mk("plot"), "fringefit", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunToolDefaultsFromMetadata(t *testing.T) {
	exec := &fakeExecutor{}
	_, _, mk := testSetup(t, dialog.NewScriptedGate(), exec)
	if err := RunTool(mk("plot"), "checklis", nil); err != nil {
		t.Fatalf("exec checklis: %v", err)
	}
	if !strings.Contains(strings.Join(exec.Commands, "\n"), "checklis.py n19c3.lis") {
		t.Errorf("commands = %v", exec.Commands)
	}
}

func TestContextRejectsUndeclaredOutput(t *testing.T) {
	exec := &fakeExecutor{}
	_, _, mk := testSetup(t, dialog.NewScriptedGate(), exec)
	c := mk("plot")
	err := c.SetValue("bogus", "x")
	var und *UndeclaredOutputError
	if !errors.As(err, &und) {
		t.Fatalf("error type = %T, want *UndeclaredOutputError", err)
	}
}
