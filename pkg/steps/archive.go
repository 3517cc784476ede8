package steps

import (
	"fmt"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// stepFormatConvert produces the FITS-IDI files with tConvert. Stations
// that observed linear polarizations stop the step at a checkpoint while
// the operator runs PolConvert by hand; afterwards the corrected files are
// moved into place and the standard note goes into the PI letter.
func stepFormatConvert(c *Context) error {
	exp := c.Exp
	var fits []string
	for _, p := range exp.Passes {
		if _, err := c.Run("", "tConvert", p.MSFile, p.FitsIDIFile); err != nil {
			return err
		}
		fits = append(fits, p.FitsIDIFile)
	}
	if err := c.SetValue("fitsfiles", strings.Join(fits, " ")); err != nil {
		return err
	}

	polconv := exp.AntennasWhere(func(a experiment.Antenna) bool { return a.PolConvert })
	if len(polconv) == 0 {
		c.Log.Info("PolConvert is not required")
		return c.SetValue("polconverted", "none")
	}

	low := strings.ToLower(exp.Name)
	if _, err := c.Run("", "cp", "/home/jops/polconvert/polconvert_inputs.ini", "."); err != nil {
		return err
	}
	if _, err := c.Run("", "sed", "-i",
		fmt.Sprintf("'s/es100_1_1.IDI6/%s_1_1.IDI*/g'", low), "polconvert_inputs.ini"); err != nil {
		return err
	}
	quoted := make([]string, len(polconv))
	for i, ant := range polconv {
		quoted[i] = `\"` + strings.ToUpper(ant) + `\"`
	}
	if _, err := c.Run("", "sed", "-i",
		fmt.Sprintf(`'s/\"T6\"/%s/g'`, strings.Join(quoted, ", ")), "polconvert_inputs.ini"); err != nil {
		return err
	}

	ok, err := c.Gate.Confirm(fmt.Sprintf(
		"PolConvert must run manually for %s (polconvert.py polconvert_inputs.ini). Done?",
		strings.Join(polconv, ", ")))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("PolConvert still pending for %s", strings.Join(polconv, ", "))
	}

	// Converted files come out as *.PCONVERT; keep the originals aside and
	// promote the corrected ones to the standard names.
	if _, err := c.Run("", "mkdir", "-p", "idi_ori"); err != nil {
		return err
	}
	if _, err := c.Run("", "bash", "-c",
		"'for f in *IDI*.PCONVERT; do mv \"${f%.PCONVERT}\" idi_ori/ 2>/dev/null; mv \"$f\" \"${f%.PCONVERT}\"; done'"); err != nil {
		return err
	}
	if err := AppendPolConvertNote(c.Cfg.ExpDir(exp.Name), exp, polconv); err != nil {
		return err
	}
	return c.SetValue("polconverted", strings.Join(polconv, " "))
}

// stepArchive compresses the plots and pushes credentials, standard plots
// with the letter, and the FITS files to the EVN archive.
func stepArchive(c *Context) error {
	exp := c.Exp
	archiveHost := c.Cfg.Hosts.Archive
	low := strings.ToLower(exp.Name)

	if _, err := c.Run("", "gzip", "-f", low+"*.ps"); err != nil {
		c.Log.Warnf("no plots to compress: %v", err)
	}

	if exp.Credentials != nil {
		if _, err := c.Run(archiveHost, "archive.pl", "-auth", "-e", low+"_"+exp.ObsDate,
			"-n", exp.Credentials.Username, "-p", exp.Credentials.Password); err != nil {
			return err
		}
	}
	if _, err := c.Run(archiveHost, "archive.pl", "-stnd", "-e", low+"_"+exp.ObsDate, "*ps.gz"); err != nil {
		return err
	}
	if _, err := c.Run(archiveHost, "archive.pl", "-fits", "-e", low+"_"+exp.ObsDate, "*IDI*"); err != nil {
		return err
	}
	return c.SetValue("archived", "plots fits")
}
