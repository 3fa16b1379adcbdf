package capture

import (
	"bytes"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/redactyl/livegrab/internal/redact"
	"github.com/redactyl/livegrab/internal/types"
)

const shardCount = 64

type entry struct {
	seq     uint64
	capture types.Capture
	count   int
}

type shard struct {
	mu sync.Mutex
	m  map[string]*entry
}

// table is the per-run fingerprint table. Each fingerprint lives in one
// shard, so inserts for unrelated fingerprints rarely contend. The first
// observation creates the Capture under the shard lock; later ones only
// bump its counter.
type table struct {
	shards [shardCount]shard
	seq    atomic.Uint64
	sealed atomic.Bool
	now    func() time.Time
}

func newTable(now func() time.Time) *table {
	t := &table{now: now}
	for i := range t.shards {
		t.shards[i].m = make(map[string]*entry)
	}
	return t
}

func (t *table) shardFor(fp string) *shard {
	return &t.shards[xxhash.Sum64String(fp)%shardCount]
}

// record counts one capture event for fp. It returns false once the table
// is sealed.
func (t *table) record(fp string, c types.Candidate) (created, ok bool) {
	s := t.shardFor(fp)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.sealed.Load() {
		return false, false
	}
	if e, found := s.m[fp]; found {
		e.count++
		return false, true
	}
	value := bytes.Clone(c.Value)
	s.m[fp] = &entry{
		seq:   t.seq.Add(1),
		count: 1,
		capture: types.Capture{
			ID:              fp,
			Kind:            c.Kind,
			Detector:        c.Detector,
			Value:           value,
			Confidence:      c.Confidence,
			FirstSeenAt:     t.now(),
			Provenance:      c.Provenance,
			RedactedPreview: redact.Preview(c.Kind, value),
		},
	}
	return true, true
}

// seal stops further recording and returns the captures in first-observation
// order with their occurrence counts, plus the total number of events.
func (t *table) seal() ([]types.Capture, int64) {
	t.sealed.Store(true)
	var all []*entry
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for _, e := range s.m {
			all = append(all, e)
		}
		s.mu.Unlock()
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]types.Capture, len(all))
	var events int64
	for i, e := range all {
		out[i] = e.capture
		out[i].Occurrences = e.count
		events += int64(e.count)
	}
	return out, events
}
