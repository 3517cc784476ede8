package experiment

import (
	"fmt"
	"strings"
)

// SummaryMarkdown renders the experiment overview shown by the info command.
func (e *Experiment) SummaryMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", e.Name)
	if e.AltName != "" {
		fmt.Fprintf(&b, "e-EVN run under **%s**\n\n", e.AltName)
	}
	if len(e.PINames) > 0 {
		fmt.Fprintf(&b, "**PI:** %s\n\n", strings.Join(e.PINames, ", "))
	}
	if len(e.Emails) > 0 {
		fmt.Fprintf(&b, "**Contact:** %s\n\n", strings.Join(e.Emails, ", "))
	}
	if e.ObsDate != "" {
		fmt.Fprintf(&b, "**Observed:** %s", e.ObsDate)
		if !e.StartTime.IsZero() && !e.EndTime.IsZero() {
			fmt.Fprintf(&b, " (%s to %s UTC)",
				e.StartTime.Format("2006-01-02 15:04"), e.EndTime.Format("15:04"))
		}
		b.WriteString("\n\n")
	}
	if e.Credentials != nil {
		fmt.Fprintf(&b, "**Archive credentials:** %s / %s\n\n",
			e.Credentials.Username, e.Credentials.Password)
	}

	if len(e.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		b.WriteString("| name | type | protected |\n|---|---|---|\n")
		for _, s := range e.Sources {
			prot := ""
			if s.Protected {
				prot = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", s.Name, s.Type, prot)
		}
		b.WriteString("\n")
	}

	if len(e.Antennas) > 0 {
		b.WriteString("## Antennas\n\n")
		fmt.Fprintf(&b, "Scheduled: %s\n\n",
			strings.Join(e.AntennasWhere(func(a Antenna) bool { return a.Scheduled }), ", "))
		observed := e.AntennasWhere(func(a Antenna) bool { return a.Observed })
		if len(observed) > 0 {
			fmt.Fprintf(&b, "Observed: %s\n\n", strings.Join(observed, ", "))
		}
		flagged := []struct {
			label string
			pick  func(Antenna) bool
		}{
			{"Pol swapped", func(a Antenna) bool { return a.PolSwap }},
			{"Pol converted", func(a Antenna) bool { return a.PolConvert }},
			{"1-bit sampled", func(a Antenna) bool { return a.OneBit }},
		}
		for _, f := range flagged {
			if names := e.AntennasWhere(f.pick); len(names) > 0 {
				fmt.Fprintf(&b, "%s: %s\n\n", f.label, strings.Join(names, ", "))
			}
		}
		if len(e.RefAnts) > 0 {
			fmt.Fprintf(&b, "Reference: %s\n\n", strings.Join(e.RefAnts, ", "))
		}
	}

	if len(e.Passes) > 0 {
		b.WriteString("## Correlator passes\n\n")
		for i, p := range e.Passes {
			fmt.Fprintf(&b, "%d. `%s`", i+1, p.LisFile)
			if p.MSFile != "" {
				fmt.Fprintf(&b, " → `%s`", p.MSFile)
			}
			if p.FitsIDIFile != "" {
				fmt.Fprintf(&b, " → `%s`", p.FitsIDIFile)
			}
			if p.Pipeline {
				b.WriteString(" (pipeline)")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.FlagWeights != nil {
		fmt.Fprintf(&b, "## Weights\n\nThreshold %.2f", e.FlagWeights.Threshold)
		if e.FlagWeights.Percentage >= 0 {
			fmt.Fprintf(&b, ", %.2f%% of the data flagged", e.FlagWeights.Percentage)
		}
		b.WriteString("\n\n")
	}

	if len(e.StoredOutputs) > 0 {
		b.WriteString("## Completed steps\n\n")
		for _, name := range e.CompletedSteps() {
			rec := e.StoredOutputs[name]
			fmt.Fprintf(&b, "- %s (%s)\n", name, rec.Status)
		}
		b.WriteString("\n")
	}

	return b.String()
}
