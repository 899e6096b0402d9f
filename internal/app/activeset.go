package app

import "sync"

// activeSet is a drain-on-read set of recently seen owner addresses.
type activeSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newActiveSet() *activeSet {
	return &activeSet{keys: make(map[string]struct{})}
}

func (s *activeSet) add(key string) {
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
}

func (s *activeSet) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	s.keys = make(map[string]struct{})
	return out
}
