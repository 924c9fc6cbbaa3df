package host

import (
	"fmt"
	"sync"
)

// DefaultNamePrefix is the prefix of generated mesh names.
const DefaultNamePrefix = "voxelizerMesh"

// Session hands out object names of the form <prefix><n>, n counting up
// from a start value for the life of the session. Names for which Taken
// reports true are skipped. A Session is safe for concurrent use.
type Session struct {
	Prefix string
	// Taken, if set, reports names already present in the scene.
	Taken func(name string) bool

	mu   sync.Mutex
	next int
}

// NewSession starts a counter at start. An empty prefix uses
// DefaultNamePrefix; start < 1 starts at 1.
func NewSession(prefix string, start int) *Session {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	if start < 1 {
		start = 1
	}
	return &Session{Prefix: prefix, next: start}
}

// Next returns a fresh name and advances the counter.
func (s *Session) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next < 1 {
		s.next = 1
	}
	for {
		name := fmt.Sprintf("%s%d", s.Prefix, s.next)
		s.next++
		if s.Taken == nil || !s.Taken(name) {
			return name
		}
	}
}

// Peek returns the name Next would try first, without advancing.
func (s *Session) Peek() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s%d", s.Prefix, max(s.next, 1))
}
