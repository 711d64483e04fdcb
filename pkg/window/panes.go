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
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultSliceWidth is the granularity of the slice index of keyed windows.
const DefaultSliceWidth = uint64(time.Second)

// Config describes sliding windows made of SliceCount panes of Slide
// nanoseconds each. All times are nanoseconds.
type Config struct {
	Slide      uint64
	SliceCount uint64
	// SliceWidth is the width of the slices indexing keys and sub-slide contents.
	SliceWidth uint64
}

// NewConfig returns a Config with the default slice width.
func NewConfig(slide time.Duration, sliceCount uint64) Config {
	return Config{Slide: uint64(slide), SliceCount: sliceCount, SliceWidth: DefaultSliceWidth}
}

// Validate checks the window shape.
func (c Config) Validate() error {
	if c.Slide == 0 || c.SliceCount == 0 || c.SliceWidth == 0 {
		return errors.Newf("slide, slice count and slice width must be positive, got %d, %d and %d", c.Slide, c.SliceCount, c.SliceWidth)
	}
	return nil
}

// ValidateSliced additionally requires a slide made of whole slices.
func (c Config) ValidateSliced() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Slide%c.SliceWidth != 0 {
		return errors.Newf("slide %d is not a multiple of the slice width %d", c.Slide, c.SliceWidth)
	}
	return nil
}

// Size is the length of a window.
func (c Config) Size() uint64 { return c.Slide * c.SliceCount }

// SlicesPerSlide is the number of slices in one slide.
func (c Config) SlicesPerSlide() uint64 { return c.Slide / c.SliceWidth }

// PaneEnd returns the end of the pane holding ts.
func (c Config) PaneEnd(ts uint64) uint64 { return (ts/c.Slide + 1) * c.Slide }

// SliceEnd returns the end of the slice holding ts.
func (c Config) SliceEnd(ts uint64) uint64 { return (ts/c.SliceWidth + 1) * c.SliceWidth }

// CurrentSlide returns the end of the slide an epoch belongs to.
func (c Config) CurrentSlide(epoch uint64) uint64 { return c.PaneEnd(epoch) }

// WindowEndForSlide returns the end of the window whose first pane ends at slide.
func (c Config) WindowEndForSlide(slide uint64) uint64 {
	return slide + c.Slide*(c.SliceCount-1)
}

// WindowStart returns the start of the window ending at windowEnd.
func (c Config) WindowStart(windowEnd uint64) uint64 {
	if windowEnd < c.Size() {
		return 0
	}
	return windowEnd - c.Size()
}

// FirstPane returns the end of the first pane of the window, the pane purged
// when the window fires.
func (c Config) FirstPane(windowEnd uint64) uint64 {
	return c.WindowStart(windowEnd) + c.Slide
}

// PanesOf returns the pane ends of the window, newest first.
func (c Config) PanesOf(windowEnd uint64) []uint64 {
	panes := make([]uint64, 0, c.SliceCount)
	for i := uint64(0); i < c.SliceCount && c.Slide*i < windowEnd; i++ {
		panes = append(panes, windowEnd-c.Slide*i)
	}
	return panes
}

// SlicesOf returns the slice ends covering the window, oldest first.
func (c Config) SlicesOf(windowEnd uint64) []uint64 {
	return c.sliceRange(c.WindowStart(windowEnd)+c.SliceWidth, windowEnd)
}

// PurgeSlices returns the slice ends of the first pane of the window.
func (c Config) PurgeSlices(windowEnd uint64) []uint64 {
	return c.sliceRange(c.WindowStart(windowEnd)+c.SliceWidth, c.FirstPane(windowEnd))
}

// sliceRange returns from, from+SliceWidth, ... up to and including to.
func (c Config) sliceRange(from, to uint64) []uint64 {
	var slices []uint64
	for s := from; s <= to; s += c.SliceWidth {
		slices = append(slices, s)
	}
	return slices
}

// AssignWindows returns the start of every window containing ts, latest
// first. Windows are half-open, [start, start+Size).
func (c Config) AssignWindows(ts uint64) []uint64 {
	// use the highest multiple of slide not after ts as the start of the
	// latest window, then walk back by slide while the window still covers ts
	var starts []uint64
	start := (ts / c.Slide) * c.Slide
	for {
		if ts >= start+c.Size() {
			break
		}
		starts = append(starts, start)
		if start < c.Slide {
			break
		}
		start -= c.Slide
	}
	return starts
}
