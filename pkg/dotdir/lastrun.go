package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lastRunFile = "last_run.json"

// LastRun records the most recent `lamdag reduce` so that `lamdag status`
// can report it and `lamdag reduce --again` can repeat it, typically with a
// larger budget. Source holds the program text.
type LastRun struct {
	RunID  string    `json:"run_id"`
	Source string    `json:"source"`
	Mode   string    `json:"mode"`
	Steps  int64     `json:"steps"`
	Status string    `json:"status"`
	Result string    `json:"result,omitempty"`
	At     time.Time `json:"at"`
}

// LoadLastRun returns the recorded run, or nil, nil if there is none.
func (m *Manager) LoadLastRun(overrideDir string) (*LastRun, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, lastRunFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last run: %w", err)
	}

	run := &LastRun{}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("parsing last run: %w", err)
	}
	return run, nil
}

// SaveLastRun overwrites the recorded run.
func (m *Manager) SaveLastRun(run *LastRun, overrideDir string) error {
	if run == nil {
		return errors.New("cannot save nil run")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last run: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, lastRunFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last run: %w", err)
	}
	return nil
}

// ClearLastRun removes the record. Clearing twice is not an error.
func (m *Manager) ClearLastRun(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, lastRunFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing last run: %w", err)
	}
	return nil
}
