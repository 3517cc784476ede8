package steps

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// stepCalibrateFlag asks for the visibility-weight threshold and for the
// stations needing corrections, then drops the low-weight data with
// flag_weights and stores how much was removed.
func stepCalibrateFlag(c *Context) error {
	exp := c.Exp

	answer, err := c.Gate.Ask("Weight threshold to apply (0 < t < 1):", func(s string) error {
		t, convErr := strconv.ParseFloat(s, 64)
		if convErr != nil {
			return fmt.Errorf("not a number")
		}
		_, fwErr := experiment.NewFlagWeight(t)
		return fwErr
	})
	if err != nil {
		return err
	}
	threshold, _ := strconv.ParseFloat(answer, 64)
	fw, err := experiment.NewFlagWeight(threshold)
	if err != nil {
		return err
	}
	exp.FlagWeights = fw

	for _, field := range []string{"polswap", "onebit", "polconvert"} {
		ans, askErr := c.Gate.Ask(fmt.Sprintf("Stations needing %s (comma separated, empty for none):", field), nil)
		if askErr != nil {
			return askErr
		}
		if strings.TrimSpace(ans) == "" {
			continue
		}
		if editErr := exp.Edit(field, ans); editErr != nil {
			return editErr
		}
	}

	for _, p := range exp.Passes {
		res, runErr := c.Run("", "flag_weights.py", p.MSFile, answer)
		if runErr != nil {
			return runErr
		}
		if pct, ok := parseFlaggedPercent(string(res.Stdout)); ok {
			exp.FlagWeights.Percentage = pct
		}
	}

	if err := c.SetValue("threshold", answer); err != nil {
		return err
	}
	return c.SetValue("flagged_percent", fmt.Sprintf("%.2f", exp.FlagWeights.Percentage))
}

var flaggedPercentRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)% data with non-zero`)

// parseFlaggedPercent pulls the flagged fraction out of the flag_weights
// report.
func parseFlaggedPercent(output string) (float64, bool) {
	m := flaggedPercentRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

// stepMSOperations applies the station fixes on the measurement sets:
// Yebes focus correction, polarization swaps, 1-bit scaling, then fills the
// weight figures into the PI letter and refreshes the plots without the
// weight panel.
func stepMSOperations(c *Context) error {
	exp := c.Exp
	var ops []string

	ys := exp.AntennaByName("Ys")
	for _, p := range exp.Passes {
		if ys != nil && ys.Observed {
			if _, err := c.Run("", "ysfocus.py", p.MSFile); err != nil {
				return err
			}
			ops = append(ops, "ysfocus")
		}
		if swapped := exp.AntennasWhere(func(a experiment.Antenna) bool { return a.PolSwap }); len(swapped) > 0 {
			if _, err := c.Run("", "polswap.py", p.MSFile, strings.Join(swapped, ",")); err != nil {
				return err
			}
			ops = append(ops, "polswap")
		}
		if onebit := exp.AntennasWhere(func(a experiment.Antenna) bool { return a.OneBit }); len(onebit) > 0 {
			if _, err := c.Run("", "scale1bit.py", p.MSFile, strings.Join(onebit, " ")); err != nil {
				return err
			}
			ops = append(ops, "scale1bit")
		}
	}

	if exp.FlagWeights != nil {
		if err := UpdatePILetter(c.Cfg.ExpDir(exp.Name), exp); err != nil {
			return err
		}
		ops = append(ops, "piletter")
	}

	refant := exp.DefaultRefAnt()
	if len(exp.RefAnts) > 0 {
		refant = exp.RefAnts[0]
	}
	for _, p := range exp.Passes {
		if !p.Pipeline {
			continue
		}
		if _, err := c.Run("", "standardplots", p.MSFile, refant, strings.Join(exp.PlotSources(), ",")); err != nil {
			return err
		}
	}

	return c.SetValue("operations", strings.Join(dedupe(ops), " "))
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
