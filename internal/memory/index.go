// Package memory keeps cross-session knowledge about recurring scam
// messages and the indicators seen in them.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/honeypot/internal/domain"
)

// Normalize lowercases text, collapses whitespace runs and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Key returns the content key of text: hex SHA-256 of its normalized form.
func Key(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

type recordEntry struct {
	mu     sync.Mutex
	record domain.MemoryRecord
}

type iocKey struct {
	category domain.Category
	value    string
}

// Index is the in-process global memory. Updates to one content key are
// atomic; different keys proceed in parallel.
type Index struct {
	mu      sync.RWMutex
	records map[string]*recordEntry

	statsMu sync.Mutex
	stats   map[iocKey]*domain.IOCStat
	order   []iocKey

	now func() time.Time
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		records: make(map[string]*recordEntry),
		stats:   make(map[iocKey]*domain.IOCStat),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (x *Index) SetClock(now func() time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.now = now
}

// Lookup returns the record for text without creating one.
func (x *Index) Lookup(text string) (domain.MemoryRecord, bool) {
	x.mu.RLock()
	e, ok := x.records[Key(text)]
	x.mu.RUnlock()
	if !ok {
		return domain.MemoryRecord{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone(), true
}

func (x *Index) entry(key string) (*recordEntry, time.Time) {
	x.mu.RLock()
	e, ok := x.records[key]
	now := x.now()
	x.mu.RUnlock()
	if ok {
		return e, now
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if e, ok = x.records[key]; ok {
		return e, now
	}
	e = &recordEntry{record: domain.MemoryRecord{
		Key:       key,
		FirstSeen: now,
		LastSeen:  now,
		Intel:     domain.NewIntel(),
	}}
	x.records[key] = e
	return e, now
}

// Update records one more sighting of text. analysis replaces the stored
// classification when non-nil; intel is unioned into the stored sets. The
// returned record reflects the state right after this update.
func (x *Index) Update(text string, analysis *domain.Analysis, intel *domain.Intel) domain.MemoryRecord {
	e, now := x.entry(Key(text))

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := &e.record
	rec.Count++
	if now.After(rec.LastSeen) {
		rec.LastSeen = now
	}
	if analysis != nil {
		rec.LastAnalysis = analysis.Clone()
	}
	if intel != nil {
		rec.Intel.Merge(*intel)
		x.countIOCs(*intel, now)
	}
	return rec.Clone()
}

func (x *Index) countIOCs(in domain.Intel, now time.Time) {
	x.statsMu.Lock()
	defer x.statsMu.Unlock()

	in.Each(func(c domain.Category, v string) {
		k := iocKey{category: c, value: v}
		st, ok := x.stats[k]
		if !ok {
			st = &domain.IOCStat{Category: c, Value: v, FirstSeen: now, LastSeen: now}
			x.stats[k] = st
			x.order = append(x.order, k)
		}
		st.Count++
		if now.After(st.LastSeen) {
			st.LastSeen = now
		}
	})
}

// Top returns the n most frequently seen indicators across all categories.
// Equal counts keep first-seen order. n <= 0 returns every indicator.
func (x *Index) Top(n int) []domain.IOCStat {
	x.statsMu.Lock()
	out := make([]domain.IOCStat, 0, len(x.order))
	for _, k := range x.order {
		out = append(out, *x.stats[k])
	}
	x.statsMu.Unlock()

	slices.SortStableFunc(out, func(a, b domain.IOCStat) int {
		return b.Count - a.Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Stats returns the current counters of the indicators in in, in category
// order. Indicators never counted are skipped.
func (x *Index) Stats(in domain.Intel) []domain.IOCStat {
	x.statsMu.Lock()
	defer x.statsMu.Unlock()

	var out []domain.IOCStat
	in.Each(func(c domain.Category, v string) {
		if st, ok := x.stats[iocKey{category: c, value: v}]; ok {
			out = append(out, *st)
		}
	})
	return out
}

// Records returns a snapshot of every record.
func (x *Index) Records() []domain.MemoryRecord {
	x.mu.RLock()
	entries := make([]*recordEntry, 0, len(x.records))
	for _, e := range x.records {
		entries = append(entries, e)
	}
	x.mu.RUnlock()

	out := make([]domain.MemoryRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.record.Clone())
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b domain.MemoryRecord) int {
		return a.FirstSeen.Compare(b.FirstSeen)
	})
	return out
}

// Restore seeds the index with archived state. Existing keys are kept.
func (x *Index) Restore(records []domain.MemoryRecord, stats []domain.IOCStat) {
	x.mu.Lock()
	for _, r := range records {
		if _, ok := x.records[r.Key]; ok {
			continue
		}
		x.records[r.Key] = &recordEntry{record: r.Clone()}
	}
	x.mu.Unlock()

	x.statsMu.Lock()
	defer x.statsMu.Unlock()
	for _, st := range stats {
		k := iocKey{category: st.Category, value: st.Value}
		if _, ok := x.stats[k]; ok {
			continue
		}
		cp := st
		x.stats[k] = &cp
		x.order = append(x.order, k)
	}
}
