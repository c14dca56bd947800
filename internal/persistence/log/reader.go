package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"waterwise.ai/internal/sim/events"
)

// Files lists <dir>/<prefix>-*.jsonl.zst in chronological order.
func Files(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Scan decodes each event of one recorded file in order. It stops at the
// first error fn returns.
func Scan(path string, fn func(events.Event) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var ev events.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("%s:%d: unmarshal: %w", filepath.Base(path), line, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadDir returns every event recorded under <data>/events, ordered by file.
func ReadDir(dataDir string) ([]events.Event, error) {
	paths, err := Files(filepath.Join(dataDir, "events"), "events")
	if err != nil {
		return nil, err
	}
	var out []events.Event
	for _, p := range paths {
		if err := Scan(p, func(ev events.Event) error {
			out = append(out, ev)
			return nil
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}
