package indexdb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/sim/events"
)

type RemoteConfig struct {
	Endpoint      string
	Token         string
	ServerID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained bounds how many unsent events are kept across failed
	// flushes; the oldest are dropped first.
	MaxRetained int
	Logger      zerolog.Logger
}

// RemoteIndex mirrors the event stream to an HTTP ingest endpoint in
// batches. A batch that fails to send is kept and retried on the next flush.
type RemoteIndex struct {
	cfg        RemoteConfig
	log        zerolog.Logger
	httpClient *http.Client

	ch   chan remoteEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	stats  queueStats

	subMu sync.Mutex
	sub   *events.Subscription
	pump  chan struct{}
}

type remoteEvent struct {
	ServerID string       `json:"server_id"`
	Event    events.Event `json:"event"`
}

func OpenRemote(cfg RemoteConfig) (*RemoteIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.ServerID = strings.TrimSpace(cfg.ServerID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("empty server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 16 * cfg.BatchSize
	}
	d := &RemoteIndex{
		cfg:        cfg,
		log:        cfg.Logger.With().Str("component", "remote_index").Logger(),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan remoteEvent, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *RemoteIndex) Initialize(bus *events.Bus) error {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.sub != nil {
		return errors.New("remote index already initialized")
	}
	d.sub = bus.Subscribe(8192)
	d.pump = make(chan struct{})
	go forward(d.sub, d.pump, d.WriteEvent)
	return nil
}

func (d *RemoteIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.subMu.Lock()
		sub, pump := d.sub, d.pump
		d.subMu.Unlock()
		if sub != nil {
			sub.Close()
			<-pump
		}
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *RemoteIndex) WriteEvent(ev events.Event) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- remoteEvent{ServerID: d.cfg.ServerID, Event: ev}:
	default:
		d.stats.dropEvent.Add(1)
	}
}

func (d *RemoteIndex) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return d.stats.snapshot(len(d.ch), cap(d.ch))
}

func (d *RemoteIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]remoteEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.stats.flushFail.Add(1)
			d.log.Warn().Err(err).Int("batch", len(batch)).Msg("flush failed, retaining batch")
			if over := len(batch) - d.cfg.MaxRetained; over > 0 {
				d.stats.dropEvent.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.stats.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *RemoteIndex) sendBatch(batch []remoteEvent) error {
	body := struct {
		Events []remoteEvent `json:"events"`
	}{Events: batch}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("x-ww-index-token", d.cfg.Token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
