package indexdb

import "sync/atomic"

// Stats reports how far an index has fallen behind.
type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropEventTotal  uint64 `json:"drop_event_total"`
	DropConfigTotal uint64 `json:"drop_config_total"`
	WriteFailTotal  uint64 `json:"write_fail_total"`
	CommitFailTotal uint64 `json:"commit_fail_total"`
	DecodeFailTotal uint64 `json:"decode_fail_total"`
	FlushFailTotal  uint64 `json:"flush_fail_total"`
	SentTotal       uint64 `json:"sent_total"`
}

type queueStats struct {
	dropEvent  atomic.Uint64
	dropConfig atomic.Uint64
	writeFail  atomic.Uint64
	commitFail atomic.Uint64
	decodeFail atomic.Uint64
	flushFail  atomic.Uint64
	sent       atomic.Uint64
}

func (q *queueStats) snapshot(depth, capacity int) Stats {
	return Stats{
		QueueDepth:      depth,
		QueueCapacity:   capacity,
		DropEventTotal:  q.dropEvent.Load(),
		DropConfigTotal: q.dropConfig.Load(),
		WriteFailTotal:  q.writeFail.Load(),
		CommitFailTotal: q.commitFail.Load(),
		DecodeFailTotal: q.decodeFail.Load(),
		FlushFailTotal:  q.flushFail.Load(),
		SentTotal:       q.sent.Load(),
	}
}
