package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// Placeholders the correlator leaves in the PI letter draft.
const (
	cutoffPlaceholder  = "***weight cutoff***"
	flaggedPlaceholder = "***percent flagged***"
)

// UpdatePILetter fills the weight threshold and flagged percentage into the
// letter draft, strips the internal remark lines, and removes the trailing
// epoch letter from the project code where one is present.
func UpdatePILetter(expDir string, exp *experiment.Experiment) error {
	if exp.FlagWeights == nil {
		return fmt.Errorf("no flag weights recorded for %s yet", exp.Name)
	}
	path := filepath.Join(expDir, strings.ToLower(exp.Name)+".piletter")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read PI letter: %w", err)
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "***SuppSci:") || strings.Contains(line, "there is one***") {
			continue
		}
		if strings.Contains(line, "derived from the following EVN project code(s):") &&
			lastRuneIsLetter(exp.Name) {
			line = strings.ReplaceAll(line, exp.Name, exp.Name[:len(exp.Name)-1])
		}
		line = strings.ReplaceAll(line, cutoffPlaceholder, fmt.Sprintf("%.2g", exp.FlagWeights.Threshold))
		line = strings.ReplaceAll(line, flaggedPlaceholder, fmt.Sprintf("%.2g", exp.FlagWeights.Percentage))
		out = append(out, line)
	}

	tmp := path + "~"
	if err := os.WriteFile(tmp, []byte(strings.Join(out, "\n")), 0o644); err != nil {
		return fmt.Errorf("write PI letter: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace PI letter: %w", err)
	}
	return nil
}

// AppendPolConvertNote adds the standard PolConvert remark for the given
// stations to the end of the letter.
func AppendPolConvertNote(expDir string, exp *experiment.Experiment, stations []string) error {
	path := filepath.Join(expDir, strings.ToLower(exp.Name)+".piletter")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open PI letter: %w", err)
	}
	defer f.Close()

	plural := ""
	if len(stations) > 1 {
		plural = "s"
	}
	joined := strings.Join(stations, ", ")
	note := fmt.Sprintf("\n- Note that the antenna%s %s originally observed linear polarizations, "+
		"which were transformed to circular ones during post-processing using the PolConvert "+
		"program (Marti-Vidal, et al. 2016, A&A, 587, A143). Thanks to this correction, you can "+
		"automatically recover the absolute EVPA value when using %s as reference station during "+
		"fringe-fitting.\n", plural, joined, joined)
	if _, err := f.WriteString(note); err != nil {
		return fmt.Errorf("append PolConvert note: %w", err)
	}
	return nil
}

func lastRuneIsLetter(s string) bool {
	if s == "" {
		return false
	}
	r := s[len(s)-1]
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}
