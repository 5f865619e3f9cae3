package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ResumeState is the minimal persisted checkpoint an external scheduler uses
// to continue an interrupted run.
type ResumeState struct {
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	LastBar   int       `json:"last_bar"`
	Capital   float64   `json:"capital"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadResume reads a resume-state file. A missing file means a fresh start
// and returns (nil, nil). An unreadable or corrupted file fails closed:
// silently reinitializing would break the idempotency guarantees external
// schedulers rely on.
func LoadResume(path string) (*ResumeState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: resume state %s unreadable: %w", path, err)
	}
	st := &ResumeState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("config: resume state %s corrupted: %w", path, err)
	}
	if st.RunID == "" || st.LastBar < 0 {
		return nil, fmt.Errorf("config: resume state %s corrupted: missing run id or negative bar", path)
	}
	return st, nil
}

// SaveResume writes the state atomically (temp file + rename) so a crash
// mid-write cannot leave a half-written checkpoint behind.
func SaveResume(path string, st ResumeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal resume state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("config: write resume state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: commit resume state: %w", err)
	}
	return nil
}
