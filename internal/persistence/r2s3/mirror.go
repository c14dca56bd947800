package r2s3

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	EnqueuedTotal  uint64
	DroppedTotal   uint64
	UploadedTotal  uint64
	FailedTotal    uint64
	LastUploadUnix int64
	LastErrorUnix  int64
}

// Uploader is the part of Client a Mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

type MirrorOptions struct {
	// Keys are paths relative to DataDir, under Prefix.
	DataDir     string
	Prefix      string
	Workers     int
	Queue       int
	EnqueueWait time.Duration
	Attempts    int
	Backoff     time.Duration
	Logger      zerolog.Logger
}

// Mirror uploads finished files in the background. Enqueue never blocks for
// longer than EnqueueWait; files that do not fit are dropped and stay on
// local disk.
type Mirror struct {
	up   Uploader
	opts MirrorOptions
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan string
	wg     sync.WaitGroup
	once   sync.Once

	enqueued   atomic.Uint64
	dropped    atomic.Uint64
	uploaded   atomic.Uint64
	failed     atomic.Uint64
	lastUpload atomic.Int64
	lastError  atomic.Int64
}

func NewMirror(up Uploader, opts MirrorOptions) *Mirror {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Queue <= 0 {
		opts.Queue = 256
	}
	if opts.EnqueueWait <= 0 {
		opts.EnqueueWait = 25 * time.Millisecond
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 4
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	opts.Prefix = strings.Trim(strings.ReplaceAll(opts.Prefix, "\\", "/"), "/")

	ctx, cancel := context.WithCancel(context.Background())
	m := &Mirror{
		up:     up,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "mirror").Logger(),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan string, opts.Queue),
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.upload(p)
			}
		}()
	}
	return m
}

// Enqueue schedules localPath for upload. It must not be called after Close.
func (m *Mirror) Enqueue(localPath string) {
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(m.opts.EnqueueWait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		n := m.dropped.Add(1)
		m.log.Warn().Str("path", localPath).Uint64("dropped_total", n).Msg("mirror queue full, file stays local")
	}
}

// Close uploads what is queued and stops the workers. Retries still waiting
// on backoff give up once ctx is done.
func (m *Mirror) Close(ctx context.Context) {
	m.once.Do(func() {
		close(m.jobs)
		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			m.cancel()
			<-done
		}
		m.cancel()
	})
}

func (m *Mirror) Stats() Stats {
	return Stats{
		QueueDepth:     len(m.jobs),
		QueueCapacity:  cap(m.jobs),
		EnqueuedTotal:  m.enqueued.Load(),
		DroppedTotal:   m.dropped.Load(),
		UploadedTotal:  m.uploaded.Load(),
		FailedTotal:    m.failed.Load(),
		LastUploadUnix: m.lastUpload.Load(),
		LastErrorUnix:  m.lastError.Load(),
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.log.Warn().Err(err).Str("path", localPath).Msg("mirror skip")
		return
	}
	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(m.ctx, 2*time.Minute)
		lastErr = m.up.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			m.uploaded.Add(1)
			m.lastUpload.Store(time.Now().Unix())
			m.log.Debug().Str("key", key).Msg("mirrored")
			return
		}
		if attempt == m.opts.Attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt*attempt) * m.opts.Backoff):
		case <-m.ctx.Done():
			attempt = m.opts.Attempts
		}
	}
	m.failed.Add(1)
	m.lastError.Store(time.Now().Unix())
	m.log.Error().Err(lastErr).Str("key", key).Msg("mirror upload failed")
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("empty local path")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	base, err := filepath.Abs(m.opts.DataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside data dir %s", abs, base)
	}
	if m.opts.Prefix != "" {
		rel = path.Join(m.opts.Prefix, rel)
	}
	return rel, nil
}
