package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jive-vlbi/evnpp/pkg/steps"
)

// Step statuses recorded in the run manifest.
const (
	StatusPending = "pending"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ManifestStep is one visited step in a run.
type ManifestStep struct {
	Name    string    `yaml:"name"`
	Status  string    `yaml:"status"`
	EndedAt time.Time `yaml:"ended_at,omitempty"`
	Error   string    `yaml:"error,omitempty"`
}

// Manifest is the YAML record of one run invocation, written under
// runs/ in the experiment directory.
type Manifest struct {
	RunID      string         `yaml:"run_id"`
	Experiment string         `yaml:"experiment"`
	StartedAt  time.Time      `yaml:"started_at"`
	EndedAt    time.Time      `yaml:"ended_at"`
	Steps      []ManifestStep `yaml:"steps"`
}

// NewManifest lays out the planned steps as pending.
func NewManifest(expName string, defs []steps.Definition) *Manifest {
	m := &Manifest{
		RunID:      GenerateRunID(),
		Experiment: expName,
		StartedAt:  time.Now().UTC(),
	}
	for _, d := range defs {
		m.Steps = append(m.Steps, ManifestStep{Name: d.Name, Status: StatusPending})
	}
	return m
}

// Finish marks a step's outcome.
func (m *Manifest) Finish(name, status string, err error) {
	for i := range m.Steps {
		if m.Steps[i].Name == name {
			m.Steps[i].Status = status
			m.Steps[i].EndedAt = time.Now().UTC()
			if err != nil {
				m.Steps[i].Error = err.Error()
			}
			return
		}
	}
}

// Write stores the manifest under <expDir>/runs/<run_id>.yaml.
func (m *Manifest) Write(expDir string) error {
	m.EndedAt = time.Now().UTC()
	dir := filepath.Join(expDir, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create runs directory: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, m.RunID+".yaml"), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
