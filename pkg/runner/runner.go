// Package runner drives the step sequence for one experiment: it checks
// preconditions against the stored outputs, executes each step, persists the
// experiment after every completed step and stops on the first failure so
// the run can be resumed later.
package runner

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jive-vlbi/evnpp/pkg/config"
	"github.com/jive-vlbi/evnpp/pkg/dialog"
	"github.com/jive-vlbi/evnpp/pkg/experiment"
	"github.com/jive-vlbi/evnpp/pkg/remote"
	"github.com/jive-vlbi/evnpp/pkg/steps"
)

// PreconditionNotMetError reports a step entered before its predecessor
// completed, naming the missing step.
type PreconditionNotMetError struct {
	Step    string
	Missing string
}

func (e *PreconditionNotMetError) Error() string {
	return fmt.Sprintf("cannot run %s: required step %s has not completed", e.Step, e.Missing)
}

// Runner executes steps against one experiment.
type Runner struct {
	Registry *steps.Registry
	Store    *experiment.Store
	Cfg      *config.Settings
	Exec     remote.Executor
	Gate     dialog.Gate
	Log      *zap.SugaredLogger
}

// GenerateRunID creates a run ID in the form YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	suffix := make([]byte, 2)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", time.Now().Format("20060102T150405"), suffix)
}

// Run executes the requested range against the experiment. With both names
// empty the run resumes after the last completed step. The experiment is
// saved after every step that completes or is skipped; a failing step
// leaves the stored state exactly as the previous step left it.
func (r *Runner) Run(ctx context.Context, exp *experiment.Experiment, first, last string) error {
	var defs []steps.Definition
	var err error
	if first == "" && last == "" {
		defs = r.Registry.Resume(exp)
		if len(defs) == 0 {
			r.Log.Infof("%s: all steps already completed", exp.Name)
			return nil
		}
	} else {
		if defs, err = r.Registry.Range(first, last); err != nil {
			return err
		}
	}

	manifest := NewManifest(exp.Name, defs)
	defer func() {
		if mErr := manifest.Write(r.Cfg.ExpDir(exp.Name)); mErr != nil {
			r.Log.Warnf("could not write run manifest: %v", mErr)
		}
	}()

	for _, def := range defs {
		if err := r.checkPrecondition(def, exp); err != nil {
			manifest.Finish(def.Name, StatusFailed, err)
			return err
		}

		ok, err := r.Registry.ShouldRun(def, exp)
		if err != nil {
			manifest.Finish(def.Name, StatusFailed, err)
			return err
		}
		if !ok {
			r.Log.Infof("⊘ %s skipped (nothing to do for %s)", def.Name, exp.Name)
			exp.Record(def.Name, &experiment.StepRecord{
				Status:    experiment.StepSkipped,
				StartedAt: time.Now().UTC(),
				EndedAt:   time.Now().UTC(),
			})
			if err := r.Store.Save(exp); err != nil {
				return err
			}
			manifest.Finish(def.Name, StatusSkipped, nil)
			continue
		}

		if err := r.runStep(ctx, def, exp, manifest); err != nil {
			return err
		}
	}

	r.Log.Infof("✓ %s: run completed (%d steps)", exp.Name, len(defs))
	return nil
}

// checkPrecondition requires a stored record for the predecessor, except
// when this run just produced or verified it.
func (r *Runner) checkPrecondition(def steps.Definition, exp *experiment.Experiment) error {
	if def.Predecessor == "" {
		return nil
	}
	if _, done := exp.StoredOutputs[def.Predecessor]; !done {
		return &PreconditionNotMetError{Step: def.Name, Missing: def.Predecessor}
	}
	return nil
}

// runStep executes one step, re-entering it while the operator answers
// repeat. On success the buffered outputs are merged and the experiment is
// persisted; on failure nothing is merged and the last saved state stands.
func (r *Runner) runStep(ctx context.Context, def steps.Definition, exp *experiment.Experiment, manifest *Manifest) error {
	r.Log.Infof("▶ %s: %s", def.Name, def.Title)

	for {
		started := time.Now().UTC()
		c := steps.NewContext(ctx, def, exp, r.Cfg, r.Exec, r.Gate, r.Log)

		err := def.Run(c)
		if errors.Is(err, steps.ErrRepeatStep) {
			r.Log.Infof("↻ %s: repeating at operator request", def.Name)
			continue
		}
		if err != nil {
			manifest.Finish(def.Name, StatusFailed, err)
			if errors.Is(err, dialog.ErrUserAborted) {
				r.Log.Infof("✗ %s aborted by operator", def.Name)
				return err
			}
			r.Log.Errorf("✗ %s failed: %v", def.Name, err)
			r.Log.Infof("Resume with: evnpp run %s --exp %s", def.Name, exp.Name)
			return fmt.Errorf("step %s: %w", def.Name, err)
		}

		exp.Record(def.Name, &experiment.StepRecord{
			Status:    experiment.StepDone,
			StartedAt: started,
			EndedAt:   time.Now().UTC(),
			Commands:  c.Commands(),
			Values:    c.Values(),
		})
		if err := r.Store.Save(exp); err != nil {
			manifest.Finish(def.Name, StatusFailed, err)
			return fmt.Errorf("persist after %s: %w", def.Name, err)
		}
		manifest.Finish(def.Name, StatusPassed, nil)
		r.Log.Infof("✓ %s completed", def.Name)
		return nil
	}
}

// ExecTool runs one ad-hoc command from the exec table and records it in
// the stored outputs under an exec-prefixed key. The prefix keeps ad-hoc
// records out of the step namespace: several tools share a name with a
// catalogue step, and a bare record would move the step cursor and satisfy
// successor preconditions.
func (r *Runner) ExecTool(ctx context.Context, exp *experiment.Experiment, name string, args []string) error {
	def := steps.Definition{Name: name}
	c := steps.NewContext(ctx, def, exp, r.Cfg, r.Exec, r.Gate, r.Log)

	started := time.Now().UTC()
	if err := steps.RunTool(c, name, args); err != nil {
		return err
	}

	exp.Record("exec:"+name, &experiment.StepRecord{
		Status:    experiment.StepDone,
		StartedAt: started,
		EndedAt:   time.Now().UTC(),
		Commands:  c.Commands(),
	})
	return r.Store.Save(exp)
}
