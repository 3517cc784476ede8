package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists experiments as one JSON document each under
// <root>/<NAME>/<name>.json. Writes go through a temp file and rename so a
// crash mid-write leaves the previous state intact.
type Store struct {
	Root string
}

// NewStore roots a store at dir.
func NewStore(dir string) *Store {
	return &Store{Root: dir}
}

// StatePath returns the metadata file location for an experiment name.
func (s *Store) StatePath(name string) string {
	name = strings.ToUpper(name)
	return filepath.Join(s.Root, name, strings.ToLower(name)+".json")
}

// Save writes the experiment atomically.
func (s *Store) Save(e *Experiment) error {
	path := s.StatePath(e.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create experiment directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal experiment %s: %w", e.Name, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write experiment state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace experiment state: %w", err)
	}
	return nil
}

// Load reads an experiment back, validating the document against the
// generated schema before decoding. A missing file is a *NotFoundError.
func (s *Store) Load(name string) (*Experiment, error) {
	path := s.StatePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: strings.ToUpper(name)}
		}
		return nil, fmt.Errorf("read experiment state: %w", err)
	}

	if err := ValidateState(data); err != nil {
		return nil, fmt.Errorf("experiment state %s: %w", path, err)
	}

	var e Experiment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode experiment state %s: %w", path, err)
	}
	if e.StoredOutputs == nil {
		e.StoredOutputs = make(map[string]*StepRecord)
	}
	return &e, nil
}

// Exists reports whether stored state is present for an experiment.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.StatePath(name))
	return err == nil
}
