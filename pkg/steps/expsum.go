package steps

import (
	"fmt"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// parseMasterProjects reads the grep output from MASTER_PROJECTS.LIS and
// fills in the observing date and, for e-EVN experiments, the run name.
// Two matching lines mean the experiment was observed inside an e-EVN run:
// one line is "EXP EPOCH", the other "EEXP EPOCH EXP1 EXP2 ...". A single
// line with more than two columns means this experiment gave the run its
// own name.
func parseMasterProjects(exp *experiment.Experiment, output string) error {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(output), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	switch len(lines) {
	case 1:
		fields := strings.Fields(lines[0])
		if len(fields) < 2 {
			return fmt.Errorf("malformed MASTER_PROJECTS.LIS line %q", lines[0])
		}
		if len(fields) > 2 {
			exp.AltName = fields[0]
		}
		exp.ObsDate = trimEpoch(fields[1])
	case 2:
		for _, line := range lines {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return fmt.Errorf("malformed MASTER_PROJECTS.LIS line %q", line)
			}
			if fields[0] == exp.Name {
				exp.ObsDate = trimEpoch(fields[1])
			} else {
				exp.AltName = fields[0]
			}
		}
	default:
		return fmt.Errorf("%s not found in MASTER_PROJECTS.LIS", exp.Name)
	}

	if exp.ObsDate == "" {
		return fmt.Errorf("no observing date for %s in MASTER_PROJECTS.LIS", exp.Name)
	}
	return nil
}

// trimEpoch cuts the century off a YYYYMMDD epoch, leaving the YYMMDD form
// used everywhere else.
func trimEpoch(epoch string) string {
	if len(epoch) == 8 {
		return epoch[2:]
	}
	return epoch
}

// ParseExpsum fills the experiment from its .expsum file: PI names and
// contact addresses, the scheduled stations, and the source list with the
// proprietary flag. Lines look like:
//
//	Principal Investigator: SURNAME  (EMAIL)
//	co-I information NAME (EMAIL)
//	scheduled telescopes: Ef Hh Jb2 ...
//	src = NAME, type = TYPE (comment), use = YES (comment)
//
// "use = YES" means the source is public, so Protected ends up false.
func ParseExpsum(exp *experiment.Experiment, content string) error {
	var sources []experiment.Source

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.Contains(line, "Principal Investigator:"):
			name, email, err := parsePerson(strings.SplitN(line, ":", 2)[1])
			if err != nil {
				return fmt.Errorf("PI line %q: %w", line, err)
			}
			addPerson(exp, name, email)
		case strings.Contains(line, "co-I information"):
			rest := strings.ReplaceAll(strings.ReplaceAll(line, "co-I information", ""), ":", "")
			name, email, err := parsePerson(rest)
			if err != nil {
				return fmt.Errorf("co-I line %q: %w", line, err)
			}
			addPerson(exp, name, email)
		case strings.Contains(line, "scheduled telescopes"):
			for _, ant := range strings.Fields(strings.SplitN(line, ":", 2)[1]) {
				if a := exp.AntennaByName(ant); a != nil {
					a.Scheduled = true
					continue
				}
				exp.Antennas = append(exp.Antennas, experiment.Antenna{Name: ant, Scheduled: true})
			}
		case strings.Contains(line, "src = "):
			src, err := parseSourceLine(line)
			if err != nil {
				return err
			}
			if !containsSource(sources, src.Name) {
				sources = append(sources, src)
			}
		}
	}

	if len(sources) > 0 {
		exp.Sources = sources
	}
	return nil
}

func parsePerson(s string) (name, email string, err error) {
	lp := strings.Index(s, "(")
	rp := strings.Index(s, ")")
	if lp < 0 || rp < lp {
		return "", "", fmt.Errorf("expected NAME (EMAIL)")
	}
	return strings.TrimSpace(s[:lp]), strings.TrimSpace(s[lp+1 : rp]), nil
}

func addPerson(exp *experiment.Experiment, name, email string) {
	for _, known := range exp.PINames {
		if known == name {
			return
		}
	}
	exp.PINames = append(exp.PINames, name)
	exp.Emails = append(exp.Emails, email)
}

// parseSourceLine decodes "src = NAME, type = TYPE (x), use = YES (y)".
func parseSourceLine(line string) (experiment.Source, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return experiment.Source{}, fmt.Errorf("malformed source line %q", line)
	}
	name := valueAfterEquals(parts[0])
	rawType := strings.SplitN(valueAfterEquals(parts[1]), "(", 2)[0]
	rawUse := strings.SplitN(valueAfterEquals(parts[2]), "(", 2)[0]

	srcType, err := normalizeSourceType(strings.TrimSpace(rawType))
	if err != nil {
		return experiment.Source{}, fmt.Errorf("source %s: %w", name, err)
	}

	var protected bool
	switch strings.TrimSpace(rawUse) {
	case "YES":
		protected = false
	case "NO":
		protected = true
	default:
		return experiment.Source{}, fmt.Errorf("source %s: unknown use value %q", name, rawUse)
	}

	return experiment.NewSource(name, srcType, protected)
}

// normalizeSourceType maps the expsum vocabulary onto the stored roles.
func normalizeSourceType(raw string) (experiment.SourceType, error) {
	switch strings.ToLower(raw) {
	case "target":
		return experiment.SourceTarget, nil
	case "reference", "calibrator", "phaseref":
		return experiment.SourceCalibrator, nil
	case "fringefinder", "fringe-finder", "bandpass":
		return experiment.SourceFringeFind, nil
	case "other":
		return experiment.SourceOther, nil
	}
	return "", fmt.Errorf("unknown source type %q", raw)
}

func valueAfterEquals(s string) string {
	if i := strings.Index(s, "="); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(s)
}

func containsSource(sources []experiment.Source, name string) bool {
	for _, s := range sources {
		if s.Name == name {
			return true
		}
	}
	return false
}
