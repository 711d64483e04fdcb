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

package window

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// SlideCursor tracks how far an operator has advanced through slides. It is
// checkpointed in operator state after every batch.
type SlideCursor struct {
	// LastSlideSeen is the end of the latest slide notifications were requested for.
	LastSlideSeen uint64 `json:"lastSlideSeen"`
	// MaxWindowSeen is the end of the latest pane created ahead of data.
	MaxWindowSeen uint64 `json:"maxWindowSeen"`
	// Pending holds windows whose notification time had passed when they were
	// discovered. They fire with the next notification.
	Pending []uint64 `json:"pending,omitempty"`
}

// Advance is the outcome of moving the cursor to a new epoch.
type Advance struct {
	CurrentSlide uint64
	// Notify lists window ends to request notifications for.
	Notify []uint64
	// Lagging lists window ends that already passed; they were added to the pending set.
	Lagging []uint64
	// NewSlides lists the newly reached slide ends.
	NewSlides []uint64
}

// Advance moves the cursor to epoch. With trackLagging, windows ending before
// the current slide are added to the pending set instead of being notified.
// An epoch going backwards is an invariant violation.
func (c *SlideCursor) Advance(cfg Config, epoch uint64, trackLagging bool) (Advance, error) {
	current := cfg.CurrentSlide(epoch)
	a := Advance{CurrentSlide: current}
	if c.LastSlideSeen > current {
		return a, errors.AssertionFailedf("epoch %d is behind the last slide seen %d", epoch, c.LastSlideSeen)
	}
	for sl := c.LastSlideSeen + cfg.Slide; sl <= current; sl += cfg.Slide {
		a.NewSlides = append(a.NewSlides, sl)
		windowEnd := cfg.WindowEndForSlide(sl)
		if trackLagging && windowEnd < current {
			a.Lagging = append(a.Lagging, windowEnd)
			c.addPending(windowEnd)
			continue
		}
		a.Notify = append(a.Notify, windowEnd)
	}
	c.LastSlideSeen = current
	return a, nil
}

// PanesToInitialize returns the pane ends after MaxWindowSeen up to the
// current slide, and marks them initialized.
func (c *SlideCursor) PanesToInitialize(cfg Config, currentSlide uint64) []uint64 {
	var panes []uint64
	from := c.MaxWindowSeen + cfg.Slide
	for p := from; p <= currentSlide; p += cfg.Slide {
		panes = append(panes, p)
	}
	if len(panes) > 0 {
		c.MaxWindowSeen = panes[len(panes)-1]
	}
	return panes
}

func (c *SlideCursor) addPending(windowEnd uint64) {
	i := sort.Search(len(c.Pending), func(i int) bool { return c.Pending[i] >= windowEnd })
	if i < len(c.Pending) && c.Pending[i] == windowEnd {
		return
	}
	c.Pending = append(c.Pending, 0)
	copy(c.Pending[i+1:], c.Pending[i:])
	c.Pending[i] = windowEnd
}

// DrainPending removes and returns, ascending, the pending windows ending at
// or before upTo.
func (c *SlideCursor) DrainPending(upTo uint64) []uint64 {
	i := sort.Search(len(c.Pending), func(i int) bool { return c.Pending[i] > upTo })
	if i == 0 {
		return nil
	}
	due := append([]uint64(nil), c.Pending[:i]...)
	c.Pending = append(c.Pending[:0], c.Pending[i:]...)
	return due
}

// FireOrder returns the windows to fire for a notification at windowEnd: the
// drained pending windows followed by windowEnd, ascending and without duplicates.
func (c *SlideCursor) FireOrder(windowEnd uint64) []uint64 {
	due := c.DrainPending(windowEnd)
	if n := len(due); n > 0 && due[n-1] == windowEnd {
		return due
	}
	return append(due, windowEnd)
}
