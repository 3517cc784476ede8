package steps

import (
	"fmt"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// ccsName returns the experiment name used on the correlator host, which is
// the e-EVN run name when there is one.
func ccsName(e *experiment.Experiment) string {
	if e.AltName != "" {
		return e.AltName
	}
	return e.Name
}

// stepRetrieve creates the lis files on the correlator host, brings them
// over, derives the correlator passes and fetches the correlation output.
// The lis content is verified with checklis at an operator checkpoint; for
// e-EVN runs the operator must confirm the manual lis edit first.
func stepRetrieve(c *Context) error {
	exp := c.Exp
	ccs := c.Cfg.Hosts.Correlator
	name := ccsName(exp)
	ccsDir := c.Cfg.Expand(c.Cfg.Paths.CcsExpDir, name)
	low := strings.ToLower(name)
	expDir := c.Cfg.ExpDir(exp.Name)

	if !exp.HadLisFile {
		if _, err := c.Run(ccs, "cd", ccsDir+";", "/ccs/bin/make_lis", "-e", name); err != nil {
			return err
		}
	}
	if _, err := c.Exec.Copy(c.Ctx, ccs, fmt.Sprintf("%s/%s*.lis", ccsDir, low), "", expDir+"/"); err != nil {
		return err
	}

	// The correlator writes one lis per pass: spectral-line projects get a
	// separate _line list next to the continuum one.
	lisFiles := []string{strings.ToLower(exp.Name) + ".lis"}
	hasLine, err := c.Exec.FileExists(c.Ctx, "", fmt.Sprintf("%s/%s_line.lis", expDir, strings.ToLower(exp.Name)))
	if err != nil {
		return fmt.Errorf("check for a line pass lis file: %w", err)
	}
	if hasLine {
		lisFiles = append(lisFiles, strings.ToLower(exp.Name)+"_line.lis")
	}
	exp.Passes = derivePasses(exp, lisFiles)
	if err := c.SetValue("lisfiles", strings.Join(lisFiles, " ")); err != nil {
		return err
	}
	if err := c.SetValue("passes", fmt.Sprint(len(exp.Passes))); err != nil {
		return err
	}

	if exp.AltName != "" {
		ok, err := c.Gate.Confirm(fmt.Sprintf(
			"%s is part of the e-EVN run %s. Have you updated the lis files to refer to %s?",
			exp.Name, exp.AltName, exp.Name))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lis files still carry the e-EVN run name %s", exp.AltName)
		}
	}

	for _, lis := range lisFiles {
		res, err := c.Run("", "checklis.py", lis)
		if err != nil {
			return err
		}
		c.Log.Infof("checklis %s:\n%s", lis, strings.TrimSpace(string(res.Stdout)))
	}
	if err := c.Checkpoint("Is the lis file content correct?"); err != nil {
		return err
	}

	for _, p := range exp.Passes {
		if _, err := c.Run("", "getdata.pl", "-proj", name, "-lis", p.LisFile); err != nil {
			return err
		}
	}
	return nil
}

// derivePasses builds the correlator passes from the lis files. With a line
// pass present, both passes go to the pipeline under fixed IDI numbers;
// otherwise only the first pass is pipelined.
func derivePasses(exp *experiment.Experiment, lisFiles []string) []experiment.CorrelatorPass {
	low := strings.ToLower(exp.Name)
	hasLine := false
	for _, lis := range lisFiles {
		if strings.Contains(lis, "_line") {
			hasLine = true
		}
	}

	passes := make([]experiment.CorrelatorPass, 0, len(lisFiles))
	for i, lis := range lisFiles {
		msName := strings.TrimSuffix(lis, ".lis") + ".ms"
		var fits string
		var pipeline bool
		if hasLine {
			if strings.Contains(lis, "_line") {
				fits = low + "_2_1.IDI"
			} else {
				fits = low + "_1_1.IDI"
			}
			pipeline = true
		} else {
			fits = fmt.Sprintf("%s_%d_1.IDI", low, i+1)
			pipeline = i == 0
		}
		passes = append(passes, experiment.CorrelatorPass{
			LisFile:     lis,
			MSFile:      msName,
			FitsIDIFile: fits,
			Pipeline:    pipeline,
		})
	}
	return passes
}

// stepConvert runs j2ms2 per pass, renames the experiment inside the new
// measurement sets for e-EVN runs, and reads the MS metadata back: time
// range, per-pass sources, frequency setup and the stations that actually
// made it into the correlation.
func stepConvert(c *Context) error {
	exp := c.Exp
	var msFiles []string
	for _, p := range exp.Passes {
		if _, err := c.Run("", "j2ms2", "-v", p.LisFile); err != nil {
			return err
		}
		msFiles = append(msFiles, p.MSFile)
	}

	if exp.AltName != "" && exp.AltName != exp.Name {
		for _, p := range exp.Passes {
			if _, err := c.Run("", "expname.py", p.MSFile, exp.Name); err != nil {
				return err
			}
		}
	}

	sawAntennas := false
	for i := range exp.Passes {
		info, err := readMSMetadata(c, &exp.Passes[i])
		if err != nil {
			return err
		}
		if info == nil {
			c.Log.Warnf("no metadata read from %s", exp.Passes[i].MSFile)
			continue
		}
		if len(info.antennas) > 0 {
			sawAntennas = true
		}
	}
	// Without an ANTENNA table readout (dry runs) the scheduled stations
	// stand in for the observed set; edit can correct a dropped one.
	if !sawAntennas {
		for i := range exp.Antennas {
			if exp.Antennas[i].Scheduled {
				exp.Antennas[i].Observed = true
			}
		}
	}
	return c.SetValue("msfiles", strings.Join(msFiles, " "))
}

// stepPlot runs standardplots on the pipelined passes against the reference
// antenna and the plot sources, then holds at a checkpoint while the
// operator looks at the output. A repeat answer reruns the whole step, so a
// refant edit between attempts takes effect.
func stepPlot(c *Context) error {
	exp := c.Exp

	refant := ""
	if len(exp.RefAnts) == 1 {
		refant = exp.RefAnts[0]
	} else if len(exp.RefAnts) > 1 {
		refant = "(" + strings.Join(exp.RefAnts, "|") + ")"
	} else {
		refant = exp.DefaultRefAnt()
	}
	if refant == "" {
		return fmt.Errorf("no reference antenna for standardplots; set one with: edit refant <code>")
	}

	plotSources := exp.PlotSources()
	if len(plotSources) == 0 {
		return fmt.Errorf("no fringe finders in %s; set plot sources with: edit calsources <names>", exp.Name)
	}
	calsources := strings.Join(plotSources, ",")

	first := true
	for _, p := range exp.Passes {
		if !p.Pipeline {
			continue
		}
		args := []string{p.MSFile, refant, calsources}
		if first {
			args = append([]string{"-weight"}, args...)
			first = false
		}
		if _, err := c.Run("", "standardplots", args...); err != nil {
			return err
		}
	}

	if _, err := c.Run("", "gv", strings.ToLower(exp.Name)+"*.ps"); err != nil {
		c.Log.Warnf("could not open the plots: %v", err)
	}

	if err := c.SetValue("refant", refant); err != nil {
		return err
	}
	if err := c.SetValue("plotsources", calsources); err != nil {
		return err
	}
	return c.Checkpoint("Do the standard plots look correct?")
}
