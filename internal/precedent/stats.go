package precedent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ezextender/extenderd/internal/request"
)

// Stats keeps a small JSON sidecar with running verdict counts, total
// and per reason tag. It is operator convenience only: the precedent
// collection stays the source of truth, and a lost or stale sidecar
// loses nothing.
type Stats struct {
	mu   sync.Mutex
	path string
}

// TagCounts holds verdict counts for one reason tag.
type TagCounts struct {
	Approved int `json:"approved"`
	Denied   int `json:"denied"`
}

type statsFile struct {
	Approved int                  `json:"approved"`
	Denied   int                  `json:"denied"`
	Total    int                  `json:"total"`
	ByTag    map[string]TagCounts `json:"by_tag,omitempty"`
}

// NewStats creates a Stats sidecar at path. The parent directory is
// created on first write.
func NewStats(path string) *Stats {
	return &Stats{path: path}
}

// Increment bumps the counters for decision under tag and rewrites
// the sidecar.
func (s *Stats) Increment(tag request.Tag, decision VerdictDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load()
	if err != nil {
		return err
	}
	if cur.ByTag == nil {
		cur.ByTag = make(map[string]TagCounts)
	}
	tc := cur.ByTag[string(tag)]
	switch decision {
	case VerdictApproved:
		cur.Approved++
		tc.Approved++
	case VerdictDenied:
		cur.Denied++
		tc.Denied++
	default:
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, decision)
	}
	cur.ByTag[string(tag)] = tc
	cur.Total = cur.Approved + cur.Denied
	return s.save(cur)
}

// Counts returns the current approved, denied and total counts.
func (s *Stats) Counts() (approved, denied, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load()
	if err != nil {
		return 0, 0, 0, err
	}
	return cur.Approved, cur.Denied, cur.Total, nil
}

// TagCounts returns the verdict counts recorded under tag.
func (s *Stats) TagCounts(tag request.Tag) (TagCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load()
	if err != nil {
		return TagCounts{}, err
	}
	return cur.ByTag[string(tag)], nil
}

// ApproveRate returns the fraction of recorded verdicts that were
// approved, or 0 when nothing has been recorded.
func (s *Stats) ApproveRate() (float64, error) {
	approved, _, total, err := s.Counts()
	if err != nil || total == 0 {
		return 0, err
	}
	return float64(approved) / float64(total), nil
}

func (s *Stats) load() (statsFile, error) {
	var cur statsFile
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return cur, nil
	}
	if err != nil {
		return cur, fmt.Errorf("read stats: %w", err)
	}
	if err := json.Unmarshal(data, &cur); err != nil {
		return cur, fmt.Errorf("parse stats: %w", err)
	}
	return cur, nil
}

// save writes via temp file and rename so readers never observe a
// half-written sidecar.
func (s *Stats) save(cur statsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}
	return nil
}
