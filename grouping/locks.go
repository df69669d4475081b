// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package grouping

import "sync"

// surveyLocks hands out one mutex per survey id. Entries are removed once no
// goroutine holds or waits for them.
type surveyLocks struct {
	mu    sync.Mutex
	locks map[string]*surveyLock
}

type surveyLock struct {
	mu   sync.Mutex
	refs int
}

func newSurveyLocks() *surveyLocks {
	return &surveyLocks{locks: make(map[string]*surveyLock)}
}

// lock blocks until the survey's mutex is held and returns its release func.
func (l *surveyLocks) lock(surveyID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[surveyID]
	if !ok {
		sl = &surveyLock{}
		l.locks[surveyID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, surveyID)
		}
		l.mu.Unlock()
	}
}

func (l *surveyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
