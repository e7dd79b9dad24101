// Package corpus loads the initial call-sequence corpus from disk.
// Persisting new entries discovered during a campaign is the worker
// engine's own responsibility; the orchestrator only reads.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Call is one transaction in a recorded sequence.
type Call struct {
	Method string `json:"method"`
	Input  string `json:"input,omitempty"`
	Value  uint64 `json:"value,omitempty"`
	Gas    uint64 `json:"gas,omitempty"`
}

// Entry is one corpus item: a call sequence that previously reached new
// coverage or falsified a test.
type Entry struct {
	ID    string `json:"-"`
	Calls []Call `json:"calls"`
}

// Load reads every *.json entry under dir, sorted by filename so worker
// slices are stable between runs. A missing directory yields an empty
// corpus, not an error.
func Load(dir string) ([]Entry, error) {
	if dir == "" {
		return nil, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read corpus dir: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus entry %s: %w", name, err)
		}
		var e Entry
		if err := json.Unmarshal(content, &e); err != nil {
			return nil, fmt.Errorf("invalid corpus entry %s: %w", name, err)
		}
		e.ID = strings.TrimSuffix(name, ".json")
		entries = append(entries, e)
	}
	return entries, nil
}
