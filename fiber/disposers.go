// File: fiber/disposers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/momentics/hioload-fiber/api"
)

// disposerList keeps cleanup callbacks in registration order. Removal is
// O(1); the order slice is compacted once it is mostly tombstones.
type disposerList struct {
	next  api.DisposerID
	order []api.DisposerID
	fns   map[api.DisposerID]func()
}

func (l *disposerList) add(fn func()) api.DisposerID {
	if l.fns == nil {
		l.fns = make(map[api.DisposerID]func())
	}
	l.next++
	l.order = append(l.order, l.next)
	l.fns[l.next] = fn
	return l.next
}

func (l *disposerList) remove(id api.DisposerID) bool {
	if _, ok := l.fns[id]; !ok {
		return false
	}
	delete(l.fns, id)
	if len(l.order) > 2*len(l.fns)+16 {
		live := l.order[:0]
		for _, oid := range l.order {
			if _, ok := l.fns[oid]; ok {
				live = append(live, oid)
			}
		}
		l.order = live
	}
	return true
}

func (l *disposerList) len() int { return len(l.fns) }

// take returns the live callbacks in order and empties the list.
func (l *disposerList) take() []func() {
	out := make([]func(), 0, len(l.fns))
	for _, id := range l.order {
		if fn, ok := l.fns[id]; ok {
			out = append(out, fn)
		}
	}
	l.order = nil
	l.fns = nil
	return out
}

// runDisposers calls every fn, recovering panics into one combined error.
func runDisposers(fns []func()) error {
	var err error
	for i, fn := range fns {
		err = multierr.Append(err, runDisposer(i, fn))
	}
	return err
}

func runDisposer(i int, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = api.NewError(api.ErrCodeCallbackFailure, fmt.Sprintf("disposer %d panicked: %v", i, r))
		}
	}()
	fn()
	return nil
}
