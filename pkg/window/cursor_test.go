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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlideCursor_Advance(t *testing.T) {
	cfg := Config{Slide: 1000, SliceCount: 3, SliceWidth: 1000}
	var c SlideCursor

	a, err := c.Advance(cfg, 500, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), a.CurrentSlide)
	assert.Equal(t, []uint64{3000}, a.Notify)
	assert.Empty(t, a.Lagging)

	// same slide again requests nothing
	a, err = c.Advance(cfg, 900, true)
	require.NoError(t, err)
	assert.Empty(t, a.Notify)
	assert.Empty(t, a.NewSlides)

	a, err = c.Advance(cfg, 2500, true)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2000, 3000}, a.NewSlides)
	assert.Equal(t, []uint64{4000, 5000}, a.Notify)
	assert.Equal(t, uint64(3000), c.LastSlideSeen)
}

func TestSlideCursor_Lagging(t *testing.T) {
	cfg := Config{Slide: 1000, SliceCount: 2, SliceWidth: 1000}
	var c SlideCursor
	// jumping ahead leaves windows that ended before the current slide
	a, err := c.Advance(cfg, 4500, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), a.CurrentSlide)
	assert.Equal(t, []uint64{2000, 3000, 4000}, a.Lagging)
	assert.Equal(t, []uint64{5000, 6000}, a.Notify)
	assert.Equal(t, []uint64{2000, 3000, 4000}, c.Pending)

	assert.Equal(t, []uint64{2000, 3000, 4000, 5000}, c.FireOrder(5000))
	assert.Empty(t, c.Pending)
	assert.Equal(t, []uint64{6000}, c.FireOrder(6000))
}

func TestSlideCursor_WithoutLagging(t *testing.T) {
	cfg := Config{Slide: 1000, SliceCount: 2, SliceWidth: 1000}
	var c SlideCursor
	a, err := c.Advance(cfg, 4500, false)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2000, 3000, 4000, 5000, 6000}, a.Notify)
	assert.Empty(t, c.Pending)
}

func TestSlideCursor_Regression(t *testing.T) {
	cfg := Config{Slide: 1000, SliceCount: 2, SliceWidth: 1000}
	var c SlideCursor
	_, err := c.Advance(cfg, 4500, false)
	require.NoError(t, err)
	_, err = c.Advance(cfg, 1500, false)
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))
}

func TestSlideCursor_DrainPending(t *testing.T) {
	c := SlideCursor{Pending: []uint64{2000, 4000, 6000}}
	assert.Nil(t, c.DrainPending(1000))
	assert.Equal(t, []uint64{2000, 4000}, c.DrainPending(4000))
	assert.Equal(t, []uint64{6000}, c.Pending)
	assert.Equal(t, []uint64{6000}, c.FireOrder(6000))
}

func TestSlideCursor_PanesToInitialize(t *testing.T) {
	cfg := Config{Slide: 1000, SliceCount: 2, SliceWidth: 1000}
	var c SlideCursor
	assert.Equal(t, []uint64{1000, 2000, 3000}, c.PanesToInitialize(cfg, 3000))
	assert.Empty(t, c.PanesToInitialize(cfg, 3000))
	assert.Equal(t, []uint64{4000}, c.PanesToInitialize(cfg, 4000))
	assert.Equal(t, uint64(4000), c.MaxWindowSeen)
}
