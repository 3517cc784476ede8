package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// stepPipelinePrep readies the pipeline host: working directories, the
// antab calibration file, the uvflg flags and the pipeline input file.
// For e-EVN runs the antab merge needs antab_editor.py with the -a option,
// which has to happen by hand.
func stepPipelinePrep(c *Context) error {
	exp := c.Exp
	pipe := c.Cfg.Hosts.Pipeline
	low := strings.ToLower(exp.Name)
	inDir := c.Cfg.Expand(c.Cfg.Paths.PipelineIn, exp.Name)
	outDir := c.Cfg.Expand(c.Cfg.Paths.PipelineOut, exp.Name)

	for _, d := range []string{inDir, outDir} {
		if _, err := c.Run(pipe, "mkdir", "-p", d); err != nil {
			return err
		}
	}

	haveAntab, err := c.Exec.FileExists(c.Ctx, pipe, fmt.Sprintf("%s/%s*.antab", inDir, low))
	if err != nil {
		return err
	}
	if !haveAntab {
		if exp.AltName != "" {
			ok, confirmErr := c.Gate.Confirm(fmt.Sprintf(
				"%s is part of the e-EVN run %s: run antab_editor.py -a manually on %s. Done?",
				exp.Name, exp.AltName, pipe))
			if confirmErr != nil {
				return confirmErr
			}
			if !ok {
				return fmt.Errorf("antab file for %s still missing on %s", exp.Name, pipe)
			}
		} else {
			if _, err := c.Run(pipe, "cd", inDir+";", "antab_editor.py"); err != nil {
				return err
			}
		}
	}
	if err := c.SetValue("antab", low+".antab"); err != nil {
		return err
	}

	if _, err := c.Run(pipe, "cd", inDir+";", "uvflgall.csh"); err != nil {
		return err
	}
	if _, err := c.Run(pipe, "cd", inDir+";", "cat", "*uvflgfs", ">", low+".uvflg"); err != nil {
		return err
	}

	inputs, err := writePipelineInputs(c)
	if err != nil {
		return err
	}
	for _, inp := range inputs {
		if _, err := c.Exec.Copy(c.Ctx, "", inp, pipe, inDir+"/"); err != nil {
			return err
		}
	}
	names := make([]string, len(inputs))
	for i, inp := range inputs {
		names[i] = filepath.Base(inp)
	}
	return c.SetValue("inputs", strings.Join(names, " "))
}

// writePipelineInputs drafts one pipeline input file per pipelined pass in
// the local working directory and returns their paths.
func writePipelineInputs(c *Context) ([]string, error) {
	exp := c.Exp
	low := strings.ToLower(exp.Name)
	expDir := c.Cfg.ExpDir(exp.Name)

	var paths []string
	n := 0
	for _, p := range exp.Passes {
		if !p.Pipeline {
			continue
		}
		n++
		name := fmt.Sprintf("%s_%d.inp.txt", low, n)
		if len(paths) == 0 && countPipelined(c) == 1 {
			name = low + ".inp.txt"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "experiment = %s\n", low)
		fmt.Fprintf(&b, "fits = %s\n", p.FitsIDIFile)
		if len(exp.RefAnts) > 0 {
			fmt.Fprintf(&b, "refant = %s\n", strings.Join(exp.RefAnts, ", "))
		} else if ref := exp.DefaultRefAnt(); ref != "" {
			fmt.Fprintf(&b, "refant = %s\n", ref)
		}
		if bp := exp.PlotSources(); len(bp) > 0 {
			fmt.Fprintf(&b, "bpass = %s\n", strings.Join(bp, ", "))
		}
		if targets := exp.SourcesOfType(experiment.SourceTarget); len(targets) > 0 {
			fmt.Fprintf(&b, "target = %s\n", strings.Join(targets, ", "))
		}
		if phaseref := exp.SourcesOfType(experiment.SourceCalibrator); len(phaseref) > 0 {
			fmt.Fprintf(&b, "phaseref = %s\n", strings.Join(phaseref, ", "))
		}

		path := filepath.Join(expDir, name)
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return nil, fmt.Errorf("write pipeline input %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func countPipelined(c *Context) int {
	n := 0
	for _, p := range c.Exp.Passes {
		if p.Pipeline {
			n++
		}
	}
	return n
}

// stepPipelineRun runs the EVN pipeline for every pipelined pass.
func stepPipelineRun(c *Context) error {
	pipe := c.Cfg.Hosts.Pipeline
	low := strings.ToLower(c.Exp.Name)
	inDir := c.Cfg.Expand(c.Cfg.Paths.PipelineIn, c.Exp.Name)

	n := 0
	for _, p := range c.Exp.Passes {
		if !p.Pipeline {
			continue
		}
		n++
		inp := fmt.Sprintf("%s_%d.inp.txt", low, n)
		if countPipelined(c) == 1 {
			inp = low + ".inp.txt"
		}
		if _, err := c.Run(pipe, "cd", inDir+";", "EVN.py", inp); err != nil {
			return err
		}
	}
	return c.SetValue("pipelined", fmt.Sprint(n))
}

// stepPipelineCheck produces the comment and tasav files, runs the feedback
// script and archives the pipeline output. It ends at a mandatory review
// checkpoint so nothing is released unseen.
func stepPipelineCheck(c *Context) error {
	exp := c.Exp
	pipe := c.Cfg.Hosts.Pipeline
	low := strings.ToLower(exp.Name)
	outDir := c.Cfg.Expand(c.Cfg.Paths.PipelineOut, exp.Name)

	if _, err := c.Run(pipe, "cd", outDir+";", "comment_tasav_file.py", low); err != nil {
		return err
	}
	if _, err := c.Run(pipe, "cd", outDir+";", "feedback.pl",
		"-exp", low+"_"+exp.ObsDate, "-jss", exp.SupSci); err != nil {
		return err
	}
	if _, err := c.Run(pipe, "cd", outDir+";", "archive_pipeline.sh", low); err != nil {
		return err
	}
	if err := c.SetValue("feedback", low+"_"+exp.ObsDate); err != nil {
		return err
	}
	return c.Checkpoint("Review the pipeline output and feedback pages. Release them?")
}

// stepFinalize archives the reviewed PI letter, builds the pipe letter for
// non-test experiments and reminds the operator to mail the PIs.
func stepFinalize(c *Context) error {
	exp := c.Exp
	low := strings.ToLower(exp.Name)

	ok, err := c.Gate.Confirm("Is the PI letter complete and ready to go out?")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("PI letter for %s not approved", exp.Name)
	}

	if _, err := c.Run(c.Cfg.Hosts.Archive, "archive.pl", "-stnd",
		"-e", low+"_"+exp.ObsDate, low+".piletter"); err != nil {
		return err
	}

	if !exp.IsTestObservation() {
		if _, err := c.Run("", "pipelet.py", low, strings.ToLower(exp.SupSci)); err != nil {
			return err
		}
	}

	c.Log.Infof("Send the PI letter to %s (%s), CC jops@jive.eu",
		strings.Join(exp.PINames, ", "), strings.Join(exp.Emails, ", "))
	return c.SetValue("letter", low+".piletter")
}
