package memory

import (
	"sort"
	"sync"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// ResultStore keeps the outcomes of one run in arrival order together with the
// processed and persisted domain sets. Domains are compared normalized.
type ResultStore struct {
	mu        sync.RWMutex
	outcomes  []harvest.Outcome
	processed map[string]struct{}
	persisted map[string]struct{}
}

// NewResultStore constructs an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{
		processed: make(map[string]struct{}),
		persisted: make(map[string]struct{}),
	}
}

// Append records an outcome.
func (s *ResultStore) Append(outcome harvest.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

// Outcomes returns a copy of the recorded outcomes in arrival order.
func (s *ResultStore) Outcomes() []harvest.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]harvest.Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Len reports the number of recorded outcomes.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// MarkProcessed adds domain to the processed set and reports whether it was new.
func (s *ResultStore) MarkProcessed(domain string) bool {
	return s.mark(s.processed, domain)
}

// IsProcessed reports whether domain was already processed in this run.
func (s *ResultStore) IsProcessed(domain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[harvest.NormalizeDomain(domain)]
	return ok
}

// Processed returns the processed domains sorted.
func (s *ResultStore) Processed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.processed))
	for domain := range s.processed {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// MarkPersisted adds domain to the persisted set and reports whether it was new.
func (s *ResultStore) MarkPersisted(domain string) bool {
	return s.mark(s.persisted, domain)
}

// UnmarkPersisted removes domain from the persisted set after a failed write.
func (s *ResultStore) UnmarkPersisted(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.persisted, harvest.NormalizeDomain(domain))
}

func (s *ResultStore) mark(set map[string]struct{}, domain string) bool {
	key := harvest.NormalizeDomain(domain)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := set[key]; ok {
		return false
	}
	set[key] = struct{}{}
	return true
}
