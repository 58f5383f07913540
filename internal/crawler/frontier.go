package crawler

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// admissionSet is the bloom-filter-backed fast path in front of the
// authoritative visited map. A bloom miss means the URL is definitely
// new; a bloom hit still requires the map check below to rule out a
// false positive.
type admissionSet struct {
	mu      sync.Mutex
	seen    *bloom.BloomFilter
	visited map[string]struct{}
}

func newAdmissionSet(estimatedItems uint) *admissionSet {
	return &admissionSet{
		seen:    bloom.NewWithEstimates(estimatedItems, 0.01),
		visited: make(map[string]struct{}),
	}
}

// testAndInsert reports whether canonicalURL was newly admitted. admitGate
// is evaluated under the same lock as the visited check, so a caller can
// fold in an additional admission condition (such as the page budget)
// without a separate race window.
func (a *admissionSet) testAndInsert(canonicalURL string, admitGate func() bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !admitGate() {
		return false
	}

	key := []byte(canonicalURL)
	if a.seen.Test(key) {
		if _, exists := a.visited[canonicalURL]; exists {
			return false
		}
	}

	a.seen.Add(key)
	a.visited[canonicalURL] = struct{}{}
	return true
}

func (a *admissionSet) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.visited)
}

// snapshot returns a copy of the visited set, safe to hand to a caller
// while the crawl is still running.
func (a *admissionSet) snapshot() map[string]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]struct{}, len(a.visited))
	for k := range a.visited {
		out[k] = struct{}{}
	}
	return out
}
