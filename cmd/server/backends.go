package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"waterwise.ai/internal/persistence/archive"
	"waterwise.ai/internal/persistence/indexdb"
	"waterwise.ai/internal/persistence/r2s3"
	"waterwise.ai/internal/sim/events"
)

// runtimeIndex is a read-model backend fed from the bus.
type runtimeIndex interface {
	Initialize(bus *events.Bus) error
	Close() error
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir, serverID string, disableDB bool, logger zerolog.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(envString("WW_INDEX_BACKEND", "sqlite"))
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "game.sqlite"), logger)
	case "remote":
		endpoint := envString("WW_INDEX_INGEST_URL", "")
		if endpoint == "" {
			return nil, fmt.Errorf("WW_INDEX_BACKEND=remote but WW_INDEX_INGEST_URL is empty")
		}
		return indexdb.OpenRemote(indexdb.RemoteConfig{
			Endpoint:      endpoint,
			Token:         envString("WW_INDEX_TOKEN", ""),
			ServerID:      serverID,
			BatchSize:     envInt("WW_INDEX_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("WW_INDEX_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported WW_INDEX_BACKEND: %s", backend)
	}
}

// persisters fans the engine's single Persister hook out to every backend.
type persisters struct {
	index    runtimeIndex
	archiver *archive.Archiver
}

func (p persisters) Initialize(bus *events.Bus) error {
	if p.index != nil {
		if err := p.index.Initialize(bus); err != nil {
			return fmt.Errorf("index: %w", err)
		}
	}
	if p.archiver != nil {
		if err := p.archiver.Initialize(bus); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	return nil
}

func (p persisters) Close() error {
	var errs []error
	if p.index != nil {
		errs = append(errs, p.index.Close())
	}
	if p.archiver != nil {
		errs = append(errs, p.archiver.Close())
	}
	return errors.Join(errs...)
}

// configDocs reads the configuration files recorded with the index.
func configDocs(dir string) map[string]string {
	out := map[string]string{}
	for _, name := range []string{"game", "rules", "board"} {
		b, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
		if err != nil {
			continue
		}
		out[name] = string(b)
	}
	return out
}

// buildMirror returns nil when WW_R2_MIRROR is off.
func buildMirror(dataDir string, logger zerolog.Logger) (*r2s3.Mirror, error) {
	if !envBool("WW_R2_MIRROR", false) {
		return nil, nil
	}
	client, err := r2s3.NewClient(r2s3.Config{
		Endpoint:        os.Getenv("WW_R2_ENDPOINT"),
		Bucket:          os.Getenv("WW_R2_BUCKET"),
		Region:          os.Getenv("WW_R2_REGION"),
		AccessKeyID:     os.Getenv("WW_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("WW_R2_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("WW_R2_MIRROR=true: %w", err)
	}
	return r2s3.NewMirror(client, r2s3.MirrorOptions{
		DataDir: dataDir,
		Prefix:  os.Getenv("WW_R2_PREFIX"),
		Workers: envInt("WW_R2_UPLOAD_WORKERS", 2),
		Logger:  logger,
	}), nil
}

func closeMirror(m *r2s3.Mirror) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.Close(ctx)
}

// registerBackendMetrics exposes index and mirror health next to the game
// metrics.
func registerBackendMetrics(reg prometheus.Registerer, idx runtimeIndex, mirror *r2s3.Mirror) {
	if idx != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "waterwise", Subsystem: "index", Name: "queue_depth",
				Help: "Events waiting to be written to the index",
			}, func() float64 { return float64(idx.Stats().QueueDepth) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "waterwise", Subsystem: "index", Name: "dropped_total",
				Help: "Events the index dropped under backpressure",
			}, func() float64 { return float64(idx.Stats().DropEventTotal) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "waterwise", Subsystem: "index", Name: "write_failures_total",
				Help: "Failed index writes and commits",
			}, func() float64 {
				s := idx.Stats()
				return float64(s.WriteFailTotal + s.CommitFailTotal + s.FlushFailTotal)
			}),
		)
	}
	if mirror != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "waterwise", Subsystem: "mirror", Name: "queue_depth",
				Help: "Files waiting to be uploaded",
			}, func() float64 { return float64(mirror.Stats().QueueDepth) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "waterwise", Subsystem: "mirror", Name: "uploaded_total",
				Help: "Files uploaded to object storage",
			}, func() float64 { return float64(mirror.Stats().UploadedTotal) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "waterwise", Subsystem: "mirror", Name: "failed_total",
				Help: "Files that failed to upload after retries",
			}, func() float64 { return float64(mirror.Stats().FailedTotal) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "waterwise", Subsystem: "mirror", Name: "dropped_total",
				Help: "Files left local because the queue was full",
			}, func() float64 { return float64(mirror.Stats().DroppedTotal) }),
		)
	}
}
