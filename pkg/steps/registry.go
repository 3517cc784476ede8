// Package steps defines the fixed post-processing step catalogue and the
// step implementations. The order is part of the contract: each step names
// its predecessor, and the runner refuses to enter a step whose predecessor
// has no stored record.
package steps

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// StepFunc is the body of one step. It reads and mutates the experiment
// through the run context and reports failure with an error.
type StepFunc func(*Context) error

// Definition describes one catalogue entry.
type Definition struct {
	Name        string
	Title       string
	Predecessor string
	// When guards the step with an expr condition over the experiment;
	// empty means always run. A false guard records the step as skipped.
	When string
	// Outputs declares the value keys the step may record. Anything else
	// is rejected at SetValue time.
	Outputs []string
	Run     StepFunc
}

// Registry is an ordered, immutable step catalogue.
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry validates that each entry's predecessor is exactly the entry
// before it, the shape every catalogue here has.
func NewRegistry(defs []Definition) (*Registry, error) {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		if _, dup := index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", d.Name)
		}
		switch {
		case i == 0 && d.Predecessor != "":
			return nil, fmt.Errorf("first step %q must have no predecessor", d.Name)
		case i > 0 && d.Predecessor != defs[i-1].Name:
			return nil, fmt.Errorf("step %q declares predecessor %q, want %q",
				d.Name, d.Predecessor, defs[i-1].Name)
		}
		index[d.Name] = i
	}
	return &Registry{defs: defs, index: index}, nil
}

// Defs returns the catalogue in execution order.
func (r *Registry) Defs() []Definition { return r.defs }

// Names returns the step names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Index resolves a step name to its position.
func (r *Registry) Index(name string) (int, error) {
	i, ok := r.index[name]
	if !ok {
		return 0, &UnknownStepError{Name: name, Known: r.Names()}
	}
	return i, nil
}

// Get resolves a step name to its definition.
func (r *Registry) Get(name string) (Definition, error) {
	i, err := r.Index(name)
	if err != nil {
		return Definition{}, err
	}
	return r.defs[i], nil
}

// Range derives the contiguous run from first to last, inclusive. Empty
// names default to the catalogue boundaries. A first step after the last
// one is an *InvalidStepRangeError.
func (r *Registry) Range(first, last string) ([]Definition, error) {
	lo := 0
	hi := len(r.defs) - 1
	var err error
	if first != "" {
		if lo, err = r.Index(first); err != nil {
			return nil, err
		}
	}
	if last != "" {
		if hi, err = r.Index(last); err != nil {
			return nil, err
		}
	}
	if lo > hi {
		return nil, &InvalidStepRangeError{First: first, Last: last}
	}
	return r.defs[lo : hi+1], nil
}

// Last returns the most advanced step with a stored record, by catalogue
// order. Records under names outside the catalogue (ad-hoc exec runs) are
// ignored. Empty when nothing has completed yet.
func (r *Registry) Last(e *experiment.Experiment) string {
	best := -1
	for name := range e.StoredOutputs {
		if i, ok := r.index[name]; ok && i > best {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return r.defs[best].Name
}

// Resume returns the steps still to run: everything after Last, or the full
// catalogue for a fresh experiment.
func (r *Registry) Resume(e *experiment.Experiment) []Definition {
	last := r.Last(e)
	if last == "" {
		return r.defs
	}
	i := r.index[last]
	return r.defs[i+1:]
}

// ShouldRun evaluates a definition's when-guard against the experiment.
func (r *Registry) ShouldRun(d Definition, e *experiment.Experiment) (bool, error) {
	cond := strings.TrimSpace(d.When)
	if cond == "" {
		return true, nil
	}
	env := guardEnv(e)
	program, err := expr.Compile(cond, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile guard %q for step %s: %w", cond, d.Name, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval guard %q for step %s: %w", cond, d.Name, err)
	}
	return out.(bool), nil
}

// guardEnv exposes the experiment facts the when-guards may consult.
func guardEnv(e *experiment.Experiment) map[string]interface{} {
	pipelinePasses := 0
	for _, p := range e.Passes {
		if p.Pipeline {
			pipelinePasses++
		}
	}
	return map[string]interface{}{
		"test_observation": e.IsTestObservation(),
		"eevn":             e.AltName != "",
		"polconvert":       len(e.AntennasWhere(func(a experiment.Antenna) bool { return a.PolConvert })) > 0,
		"polswap":          len(e.AntennasWhere(func(a experiment.Antenna) bool { return a.PolSwap })) > 0,
		"onebit":           len(e.AntennasWhere(func(a experiment.Antenna) bool { return a.OneBit })) > 0,
		"pipeline_passes":  pipelinePasses,
	}
}
