/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dataflow

import (
	"container/list"
	"sync"
)

// Notificator is the ordered set of times an operator asked to be notified at.
type Notificator struct {
	times *list.List
	lock  *sync.RWMutex
}

// NewNotificator returns an empty Notificator.
func NewNotificator() *Notificator {
	return &Notificator{
		times: list.New(),
		lock:  new(sync.RWMutex),
	}
}

// NotifyAt requests a notification at t. Requesting the same time twice has no effect.
func (n *Notificator) NotifyAt(t uint64) {
	n.lock.Lock()
	defer n.lock.Unlock()
	// most requests are for the latest time
	for e := n.times.Back(); e != nil; e = e.Prev() {
		existing := e.Value.(uint64)
		if existing == t {
			return
		}
		if existing < t {
			n.times.InsertAfter(t, e)
			return
		}
	}
	n.times.PushFront(t)
}

// Due removes and returns, ascending, the times before frontier.
func (n *Notificator) Due(frontier uint64) []uint64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	var due []uint64
	for e := n.times.Front(); e != nil; {
		t := e.Value.(uint64)
		if t >= frontier {
			break
		}
		next := e.Next()
		n.times.Remove(e)
		due = append(due, t)
		e = next
	}
	return due
}

// All removes and returns every outstanding time, ascending.
func (n *Notificator) All() []uint64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	all := n.items()
	n.times.Init()
	return all
}

func (n *Notificator) Len() int {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.times.Len()
}

// Items returns the outstanding times, ascending.
func (n *Notificator) Items() []uint64 {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.items()
}

func (n *Notificator) items() []uint64 {
	items := make([]uint64, 0, n.times.Len())
	for e := n.times.Front(); e != nil; e = e.Next() {
		items = append(items, e.Value.(uint64))
	}
	return items
}
