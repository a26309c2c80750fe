// Package scope provides a LIFO release stack for resources acquired one
// after another, so that every exit path unwinds exactly what was created.
package scope

import "log"

type entry struct {
	name    string
	release func()
}

// Stack holds release closures in acquisition order. The zero value is
// ready to use.
type Stack struct {
	entries []entry
	logger  *log.Logger
}

// New returns a Stack that logs each release to logger. A nil logger
// disables release logging.
func New(logger *log.Logger) *Stack {
	return &Stack{logger: logger}
}

// Push records release as the destructor for a resource that was just
// acquired. name is only used for logging.
func (s *Stack) Push(name string, release func()) {
	if release == nil {
		return
	}
	s.entries = append(s.entries, entry{name: name, release: release})
}

// Len reports how many releases are pending.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Release runs all pending releases, newest first, and empties the stack.
// Calling it again is a no-op.
func (s *Stack) Release() {
	for len(s.entries) > 0 {
		last := len(s.entries) - 1
		e := s.entries[last]
		s.entries = s.entries[:last]

		if s.logger != nil {
			s.logger.Printf("scope: releasing %s", e.name)
		}
		e.release()
	}
}

// Disarm drops all pending releases without running them. Use it once a
// multi-step creation succeeded and ownership moved elsewhere.
func (s *Stack) Disarm() {
	s.entries = nil
}
