package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// persistedSession lets a restarted gateway reconnect its agents with the
// role they registered under.
type persistedSession struct {
	Name            string `json:"name,omitempty"`
	Role            string `json:"role,omitempty"`
	LastConnectedAt string `json:"last_connected_at,omitempty"`
	LastSeq         uint64 `json:"last_event_seq,omitempty"`
}

func loadStateFile(path string) (map[string]persistedSession, error) {
	if path == "" {
		return map[string]persistedSession{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]persistedSession{}, nil
		}
		return nil, err
	}
	var m map[string]persistedSession
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if m == nil {
		m = map[string]persistedSession{}
	}
	return m, nil
}

func writeFileAtomic(path string, b []byte) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
