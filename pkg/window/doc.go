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

// Package window implements the arithmetic of sliding windows built from panes.
//
// A window of SliceCount panes slides by one pane (Slide nanoseconds) at a time. Every event is added to exactly one
// pane, the one ending at the next multiple of Slide after its timestamp, so the state of a window is spread over
// SliceCount panes and each pane is shared by SliceCount windows. When a window fires, its panes are aggregated and the
// oldest pane, which no later window covers, is purged.
//
// Keyed aggregations additionally keep an index of the keys seen in every slice, a finer grain of SliceWidth
// nanoseconds. Firing a keyed window enumerates the slices it covers to find its keys, and purges the slices of its
// first pane.
//
// SlideCursor tracks which slides an operator has reached, which windows it asked to be notified of and which windows
// it found already past their end (pending windows).
package window
