// Package memo keeps short-lived in-process results so that repeated reads
// of the same transcript do not recompute or re-fetch anything.
package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY MEMO
// ══════════════════════════════════════════════════════════════════════════════

// Default lifetimes.
const (
	DefaultTTL             = 2 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// SummaryMemo memoizes transcript summaries by the fingerprint of their
// grading inputs. Two transcripts with the same semesters, credits, scores
// and letters share an entry.
type SummaryMemo struct {
	items *cache.Cache
}

// NewSummaryMemo creates a memo. Zero values select the defaults.
func NewSummaryMemo(ttl, cleanup time.Duration) *SummaryMemo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &SummaryMemo{items: cache.New(ttl, cleanup)}
}

// Get returns the memoized summary for t.
func (m *SummaryMemo) Get(t *transcript.Transcript) (*transcript.Summary, bool) {
	v, ok := m.items.Get(Fingerprint(t))
	if !ok {
		return nil, false
	}
	s, ok := v.(*transcript.Summary)
	return s, ok
}

// Set stores the summary computed for t.
func (m *SummaryMemo) Set(t *transcript.Transcript, s *transcript.Summary) {
	m.items.SetDefault(Fingerprint(t), s)
}

// GetOrCompute returns the memoized summary or computes and stores it.
func (m *SummaryMemo) GetOrCompute(t *transcript.Transcript, compute func(*transcript.Transcript) (*transcript.Summary, error)) (*transcript.Summary, bool, error) {
	key := Fingerprint(t)
	if v, ok := m.items.Get(key); ok {
		if s, ok := v.(*transcript.Summary); ok {
			return s, true, nil
		}
	}

	s, err := compute(t)
	if err != nil {
		return nil, false, err
	}
	m.items.SetDefault(key, s)
	return s, false, nil
}

// Flush drops every entry.
func (m *SummaryMemo) Flush() {
	m.items.Flush()
}

// Len returns the number of entries, expired ones included until cleanup.
func (m *SummaryMemo) Len() int {
	return m.items.ItemCount()
}

// Fingerprint hashes the fields that influence a summary. Names and
// backend-reported values are left out.
func Fingerprint(t *transcript.Transcript) string {
	h := sha256.New()
	if t == nil {
		return hex.EncodeToString(h.Sum(nil))
	}
	for _, s := range t.Semesters {
		fmt.Fprintf(h, "S%d|%d|%d|%d;", s.ID, s.Year, s.Number, len(s.Courses))
		for _, c := range s.Courses {
			score := "-"
			if c.Score != nil {
				score = fmt.Sprintf("%016x", math.Float64bits(*c.Score))
			}
			fmt.Fprintf(h, "C%d|%s|%s|%s;", c.Credits, c.Code.Normalize(), score, c.Letter)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
