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

// Package dataflow runs window operators over a stream of epoch batches.
//
// A Pipeline owns a fixed number of workers. Every worker has its own state backend and operator and receives the
// events whose key hashes to it. Batches carry a non-decreasing epoch; once a worker sees epoch e, every notification
// its operator requested for a time before e is delivered, in ascending order, before the batch itself.
package dataflow
