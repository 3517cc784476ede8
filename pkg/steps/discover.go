package steps

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// masterProjectsFile holds one line per experiment on the correlator host.
const masterProjectsFile = "/ccs/var/log2vex/MASTER_PROJECTS.LIS"

// stepDiscover locates the experiment in the correlator database, creates
// the local working area, fetches the scheduling files and parses the
// expsum. Non-test experiments also get their archive credentials here.
func stepDiscover(c *Context) error {
	exp := c.Exp
	ccs := c.Cfg.Hosts.Correlator

	res, err := c.Run(ccs, "grep", exp.Name, masterProjectsFile)
	if err != nil {
		return fmt.Errorf("%s not found in the EVN database: %w", exp.Name, err)
	}
	if err := parseMasterProjects(exp, string(res.Stdout)); err != nil {
		return err
	}
	if err := c.SetValue("obsdate", exp.ObsDate); err != nil {
		return err
	}
	if err := c.SetValue("eevn", exp.AltName); err != nil {
		return err
	}

	expDir := c.Cfg.ExpDir(exp.Name)
	if err := os.MkdirAll(expDir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}

	// Scheduling files live under the e-EVN run name when there is one.
	ccsName := exp.Name
	if exp.AltName != "" {
		ccsName = exp.AltName
	}
	ccsDir := c.Cfg.Expand(c.Cfg.Paths.CcsExpDir, ccsName)
	low := strings.ToLower(exp.Name)

	if _, err := c.Exec.Copy(c.Ctx, ccs, fmt.Sprintf("%s/%s.vix", ccsDir, strings.ToLower(ccsName)),
		"", filepath.Join(expDir, low+".vix")); err != nil {
		return err
	}

	// The expsum and PI letter sit on the archive host; remember whether
	// the letter was already drafted before this run.
	archive := c.Cfg.Hosts.Archive
	hadLetter, err := c.Exec.FileExists(c.Ctx, "", filepath.Join(expDir, low+".piletter"))
	if err != nil {
		return fmt.Errorf("check for %s.piletter: %w", low, err)
	}
	exp.HadPILetter = hadLetter
	if !exp.HadPILetter {
		if _, err := c.Exec.Copy(c.Ctx, archive, "piletters/"+low+".piletter",
			"", filepath.Join(expDir, low+".piletter")); err != nil {
			return err
		}
	}
	expsumPath := filepath.Join(expDir, low+".expsum")
	haveExpsum, err := c.Exec.FileExists(c.Ctx, "", expsumPath)
	if err != nil {
		return fmt.Errorf("check for %s.expsum: %w", low, err)
	}
	if !haveExpsum {
		if _, err := c.Exec.Copy(c.Ctx, archive, "piletters/"+low+".expsum", "", expsumPath); err != nil {
			return err
		}
	}
	if err := c.SetValue("piletter", low+".piletter"); err != nil {
		return err
	}

	hadLis, err := c.Exec.FileExists(c.Ctx, ccs, ccsDir+"/"+strings.ToLower(ccsName)+"*.lis")
	if err != nil {
		return fmt.Errorf("check for lis files on %s: %w", ccs, err)
	}
	exp.HadLisFile = hadLis

	if data, err := os.ReadFile(expsumPath); err == nil {
		if err := ParseExpsum(exp, string(data)); err != nil {
			return fmt.Errorf("parse %s: %w", expsumPath, err)
		}
		if err := c.SetValue("expsum", low+".expsum"); err != nil {
			return err
		}
	} else {
		c.Log.Warnf("no expsum available for %s: %v", exp.Name, err)
	}

	if exp.IsTestObservation() {
		c.Log.Infof("%s is an NME or test experiment, no credentials will be set", exp.Name)
		return c.SetValue("credentials", "none")
	}
	if exp.Credentials == nil {
		exp.Credentials = newCredentials(exp.Name)
	}
	// The marker file lets a later run pick the same password up again.
	auth := filepath.Join(expDir, fmt.Sprintf("%s_%s.auth", exp.Credentials.Username, exp.Credentials.Password))
	if err := os.WriteFile(auth, nil, 0o600); err != nil {
		return fmt.Errorf("write auth marker: %w", err)
	}
	return c.SetValue("credentials", exp.Credentials.Username)
}

// passwordAlphabet excludes look-alike characters.
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

func randomPassword(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		b[i] = passwordAlphabet[idx.Int64()]
	}
	return string(b)
}

func newCredentials(expName string) *experiment.Credentials {
	return &experiment.Credentials{
		Username: strings.ToLower(expName),
		Password: randomPassword(12),
	}
}
