// Package codefilter keeps a bloom filter of known (domain, code) pairs so
// the resolver can answer most junk lookups without a store roundtrip. The
// filter can report false positives, which simply fall through to the store;
// it never produces a false "absent" for a code that was added.
package codefilter

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter is a concurrency-safe bloom filter over short codes.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// New sizes the filter for the expected number of codes at the given
// false-positive rate.
func New(expected uint, fpRate float64) *Filter {
	if expected == 0 {
		expected = 1 << 20
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.001
	}
	return &Filter{bf: bloom.NewWithEstimates(expected, fpRate)}
}

// Add records a (domain, code) pair.
func (f *Filter) Add(domainID uint64, code string) {
	key := key(domainID, code)
	f.mu.Lock()
	f.bf.AddString(key)
	f.mu.Unlock()
}

// MayExist reports whether the pair may be present. False means definitely
// absent.
func (f *Filter) MayExist(domainID uint64, code string) bool {
	key := key(domainID, code)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(key)
}

func key(domainID uint64, code string) string {
	return fmt.Sprintf("%d:%s", domainID, code)
}
