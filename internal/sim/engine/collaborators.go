package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/model"
)

// Configuration blob names requested from the Dispatcher at game start.
const (
	ConfigGame  = "game"
	ConfigRules = "rules"
)

// Dispatcher is the presentation side: it supplies configuration and mirrors
// assets and fields as they appear and disappear. Calls are made after the
// game lock is released.
type Dispatcher interface {
	Configuration(name string) (string, error)
	AssetCreated(v model.AssetView)
	AssetRemoved(v model.AssetView)
	FieldCreated(v model.FieldView)
	FieldRemoved(v model.FieldView)
}

// Persister and Recorder observe the game through the event bus.
type Persister interface {
	Initialize(bus *events.Bus) error
}

type Recorder interface {
	Initialize(bus *events.Bus) error
}

type RoundManager interface {
	Start(total int, start time.Time, stepMonths int)
	Reset()
	EndRound() bool
	AdvanceDate() time.Time
	Round() int
}

type StageTimer interface {
	Arm(d time.Duration, fire func())
	Stop()
	Remaining() time.Duration
}

// StaticDispatcher serves configuration from memory and has no presentation.
type StaticDispatcher struct {
	Configs map[string]string
}

func (d StaticDispatcher) Configuration(name string) (string, error) {
	raw, ok := d.Configs[name]
	if !ok {
		return "", nil
	}
	return raw, nil
}

func (StaticDispatcher) AssetCreated(model.AssetView) {}
func (StaticDispatcher) AssetRemoved(model.AssetView) {}
func (StaticDispatcher) FieldCreated(model.FieldView) {}
func (StaticDispatcher) FieldRemoved(model.FieldView) {}

// DirDispatcher reads <Dir>/<name>.yaml on every request so edits apply at the
// next game start.
type DirDispatcher struct {
	StaticDispatcher
	Dir string
}

func (d DirDispatcher) Configuration(name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(d.Dir, name+".yaml"))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s config: %w", name, err)
	}
	return string(b), nil
}
