// Package experiment holds the metadata collected while post-processing an
// EVN observation, together with its on-disk store. The Experiment value is
// the single source of truth between steps: every step reads it, and a step
// that succeeds writes its outputs back into it before anything is persisted.
package experiment

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// SourceType classifies a source in the observation.
type SourceType string

const (
	SourceTarget     SourceType = "target"
	SourceCalibrator SourceType = "calibrator"
	SourceFringeFind SourceType = "fringefinder"
	SourceOther      SourceType = "other"
)

// ParseSourceType maps a role name onto a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case SourceTarget:
		return SourceTarget, nil
	case SourceCalibrator:
		return SourceCalibrator, nil
	case SourceFringeFind:
		return SourceFringeFind, nil
	case SourceOther:
		return SourceOther, nil
	}
	return "", &InvalidValueError{Field: "source type", Value: s,
		Reason: "must be one of target, calibrator, fringefinder, other"}
}

// Source is a source observed in the experiment.
type Source struct {
	Name      string     `json:"name"`
	Type      SourceType `json:"type"`
	Protected bool       `json:"protected"`
}

// NewSource validates the role before building a Source.
func NewSource(name string, role SourceType, protected bool) (Source, error) {
	if name == "" {
		return Source{}, &InvalidValueError{Field: "source name", Value: name, Reason: "must not be empty"}
	}
	if _, err := ParseSourceType(string(role)); err != nil {
		return Source{}, err
	}
	return Source{Name: name, Type: role, Protected: protected}, nil
}

// antennaCode is the two or three letter station code, e.g. Ef, O8, Ys, Jb2.
var antennaCode = regexp.MustCompile(`^[A-Z][a-zA-Z0-9][a-z0-9]?$`)

// Antenna records one station's role in the observation and the corrections
// it needs during post-processing.
type Antenna struct {
	Name        string `json:"name"`
	Scheduled   bool   `json:"scheduled"`
	Observed    bool   `json:"observed"`
	PolSwap     bool   `json:"polswap"`
	PolConvert  bool   `json:"polconvert"`
	OneBit      bool   `json:"onebit"`
	LogFile     bool   `json:"logfile"`
	AntabFile   bool   `json:"antabfile"`
	Subbands    []int  `json:"subbands,omitempty"`
}

// ValidAntennaName reports whether name looks like a station code.
func ValidAntennaName(name string) bool {
	return antennaCode.MatchString(name)
}

// Subbands describes the frequency setup of a correlator pass.
type Subbands struct {
	NSubbands   int         `json:"n_subbands"`
	Channels    []int       `json:"channels"`
	Frequencies [][]float64 `json:"frequencies"`
	Bandwidths  []float64   `json:"bandwidths"`
}

// NewSubbands checks the per-subband slices against the subband count.
func NewSubbands(n int, channels []int, freqs [][]float64, bandwidths []float64) (*Subbands, error) {
	if n <= 0 {
		return nil, &InvalidValueError{Field: "n_subbands", Value: fmt.Sprint(n), Reason: "must be positive"}
	}
	if len(channels) != n {
		return nil, &InvalidValueError{Field: "channels", Value: fmt.Sprint(len(channels)),
			Reason: fmt.Sprintf("need one entry per subband (%d)", n)}
	}
	if len(freqs) != n {
		return nil, &InvalidValueError{Field: "frequencies", Value: fmt.Sprint(len(freqs)),
			Reason: fmt.Sprintf("need one row per subband (%d)", n)}
	}
	if len(bandwidths) != n {
		return nil, &InvalidValueError{Field: "bandwidths", Value: fmt.Sprint(len(bandwidths)),
			Reason: fmt.Sprintf("need one entry per subband (%d)", n)}
	}
	return &Subbands{NSubbands: n, Channels: channels, Frequencies: freqs, Bandwidths: bandwidths}, nil
}

// CorrelatorPass is one correlation of the observation. Most experiments
// have one; spectral-line experiments get a separate continuum and line pass.
type CorrelatorPass struct {
	LisFile     string    `json:"lisfile"`
	MSFile      string    `json:"msfile"`
	FitsIDIFile string    `json:"fitsidifile,omitempty"`
	Pipeline    bool      `json:"pipeline"`
	Sources     []string  `json:"sources,omitempty"`
	FreqSetup   *Subbands `json:"freqsetup,omitempty"`
}

// Credentials protect the archived experiment until the proprietary period
// ends.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FlagWeight keeps the visibility-weight cut applied to the data. Percentage
// is -1 until flag_weights has reported how much was dropped.
type FlagWeight struct {
	Threshold  float64 `json:"threshold"`
	Percentage float64 `json:"percentage"`
}

// NewFlagWeight validates the threshold range (0, 1).
func NewFlagWeight(threshold float64) (*FlagWeight, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, &InvalidValueError{Field: "weight threshold", Value: fmt.Sprint(threshold),
			Reason: "must be within (0, 1)"}
	}
	return &FlagWeight{Threshold: threshold, Percentage: -1}, nil
}

// StepStatus is how a step ended up in the stored outputs.
type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
)

// StepRecord is the persisted outcome of one completed step. Values only
// holds keys the step declared; the runner rejects anything else.
type StepRecord struct {
	Status    StepStatus        `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Commands  []string          `json:"commands,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
}

// Experiment aggregates everything known about one observation.
type Experiment struct {
	Name        string    `json:"name"`
	AltName     string    `json:"alt_name,omitempty"`
	SupSci      string    `json:"supsci"`
	ObsDate     string    `json:"obsdate,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	StartTime   time.Time `json:"start_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`

	PINames []string `json:"pi_names,omitempty"`
	Emails  []string `json:"emails,omitempty"`

	Antennas   []Antenna        `json:"antennas,omitempty"`
	RefAnts    []string         `json:"refants,omitempty"`
	Sources    []Source         `json:"sources,omitempty"`
	RefSources []string         `json:"ref_sources,omitempty"`
	Passes     []CorrelatorPass `json:"passes,omitempty"`

	Credentials *Credentials `json:"credentials,omitempty"`
	FlagWeights *FlagWeight  `json:"flag_weights,omitempty"`

	HadPILetter bool `json:"had_pi_letter"`
	HadLisFile  bool `json:"had_lis_file"`

	// StoredOutputs maps a step name to its completed record. Presence of a
	// key is what satisfies successor preconditions.
	StoredOutputs map[string]*StepRecord `json:"stored_outputs"`
}

// New builds a fresh experiment for the given support scientist. Names are
// kept upper-case throughout, matching the archive convention.
func New(name, supsci string) (*Experiment, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, &InvalidValueError{Field: "experiment name", Value: name, Reason: "must not be empty"}
	}
	return &Experiment{
		Name:          name,
		SupSci:        supsci,
		ProcessedAt:   time.Now().UTC(),
		StoredOutputs: make(map[string]*StepRecord),
	}, nil
}

// IsTestObservation reports whether this is a network monitoring or fringe
// test experiment. Those are never password protected.
func (e *Experiment) IsTestObservation() bool {
	return strings.HasPrefix(e.Name, "N") || strings.HasPrefix(e.Name, "F")
}

// ObsDateTime parses the YYMMDD observation date.
func (e *Experiment) ObsDateTime() (time.Time, error) {
	t, err := time.Parse("060102", e.ObsDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse obsdate %q: %w", e.ObsDate, err)
	}
	return t, nil
}

// SourcesOfType lists the names of all sources with the given role.
func (e *Experiment) SourcesOfType(t SourceType) []string {
	var names []string
	for _, s := range e.Sources {
		if s.Type == t {
			names = append(names, s.Name)
		}
	}
	return names
}

// SourceByName finds a source, nil when absent.
func (e *Experiment) SourceByName(name string) *Source {
	for i := range e.Sources {
		if e.Sources[i].Name == name {
			return &e.Sources[i]
		}
	}
	return nil
}

// AntennaByName finds a station, nil when absent.
func (e *Experiment) AntennaByName(name string) *Antenna {
	for i := range e.Antennas {
		if e.Antennas[i].Name == name {
			return &e.Antennas[i]
		}
	}
	return nil
}

// AntennasWhere lists station codes for which pick returns true.
func (e *Experiment) AntennasWhere(pick func(Antenna) bool) []string {
	var names []string
	for _, a := range e.Antennas {
		if pick(a) {
			names = append(names, a.Name)
		}
	}
	return names
}

// PlotSources returns the sources standardplots should use: the explicit
// ref_sources when set, otherwise the fringe finders.
func (e *Experiment) PlotSources() []string {
	if len(e.RefSources) > 0 {
		return e.RefSources
	}
	return e.SourcesOfType(SourceFringeFind)
}

// refAntPreference orders the default reference antenna picks.
var refAntPreference = []string{"Ef", "O8", "Ys", "Mc", "Gb", "At", "Pt"}

// DefaultRefAnt picks a reference antenna from the observed stations
// following the standard preference order. Empty when none matches.
func (e *Experiment) DefaultRefAnt() string {
	for _, pref := range refAntPreference {
		if a := e.AntennaByName(pref); a != nil && a.Observed {
			return pref
		}
	}
	return ""
}

// Record stores the outcome of a completed or skipped step, replacing any
// previous record for the same step.
func (e *Experiment) Record(step string, rec *StepRecord) {
	if e.StoredOutputs == nil {
		e.StoredOutputs = make(map[string]*StepRecord)
	}
	e.StoredOutputs[step] = rec
}

// CompletedSteps lists the recorded step names in sorted order.
func (e *Experiment) CompletedSteps() []string {
	names := make([]string, 0, len(e.StoredOutputs))
	for name := range e.StoredOutputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
