// Package history is the durable published-history store: an ordered,
// deduplicated, retention-capped list of previously published links.
// It is read once at run start and appended at most once per run, on a
// confirmed publish.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is one committed publication.
type Record struct {
	Link        string    `json:"link"`
	Feed        string    `json:"feed"`
	Domain      string    `json:"domain"`
	PublishedAt time.Time `json:"published_at"`
}

// Store is the durable history contract shared by the file and
// Postgres implementations.
type Store interface {
	// Load reads persisted records into memory. Called once at run
	// start.
	Load() error
	// Records returns the in-memory records, oldest first.
	Records() []Record
	// Contains reports whether the link was already published.
	Contains(link string) bool
	// Append records a publish. The in-memory state is always updated;
	// a returned error means persistence failed and the exactly-once
	// guarantee is weakened to this process's lifetime.
	Append(rec Record) error
}

// FileStore keeps the history in a JSON file, capped to the most
// recent `retention` records.
type FileStore struct {
	path      string
	retention int

	mu      sync.Mutex
	records []Record
	links   map[string]struct{}
}

func NewFileStore(path string, retention int) *FileStore {
	if retention <= 0 {
		retention = 1000
	}
	return &FileStore{
		path:      path,
		retention: retention,
		links:     make(map[string]struct{}),
	}
}

func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse history file: %w", err)
	}

	fs.records = trim(dedupe(records), fs.retention)
	fs.links = make(map[string]struct{}, len(fs.records))
	for _, r := range fs.records {
		fs.links[r.Link] = struct{}{}
	}
	return nil
}

func (fs *FileStore) Records() []Record {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]Record, len(fs.records))
	copy(out, fs.records)
	return out
}

func (fs *FileStore) Contains(link string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.links[link]
	return ok
}

func (fs *FileStore) Append(rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.links[rec.Link]; ok {
		return nil
	}
	fs.records = trim(append(fs.records, rec), fs.retention)
	fs.links[rec.Link] = struct{}{}

	data, err := json.MarshalIndent(fs.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}

// dedupe keeps the first occurrence of each link, preserving order.
func dedupe(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		if _, ok := seen[r.Link]; ok {
			continue
		}
		seen[r.Link] = struct{}{}
		out = append(out, r)
	}
	return out
}

// trim drops the oldest entries beyond the retention cap.
func trim(records []Record, retention int) []Record {
	if len(records) <= retention {
		return records
	}
	return records[len(records)-retention:]
}

// RecentDomainCount counts how often domain appears in the most recent
// window records.
func RecentDomainCount(records []Record, domain string, window int) int {
	count := 0
	for _, r := range recent(records, window) {
		if r.Domain == domain {
			count++
		}
	}
	return count
}

// DomainCounts tallies publishes per domain over the whole history.
func DomainCounts(records []Record) map[string]int {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		counts[r.Domain]++
	}
	return counts
}

// Last returns the most recent record, or false when history is empty.
func Last(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	return records[len(records)-1], true
}

func recent(records []Record, window int) []Record {
	if window <= 0 || window >= len(records) {
		return records
	}
	return records[len(records)-window:]
}

// Recent exposes the most recent window records, oldest first.
func Recent(records []Record, window int) []Record {
	return recent(records, window)
}
