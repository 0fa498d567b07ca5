// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ingestion provides pipeline orchestration for indexing documents.
//
// The Pipeline type manages the ingest workflow:
//   - Validating documents
//   - Splitting each document into overlapping chunks
//   - Embedding every chunk on a bounded worker pool
//   - Upserting all resulting records in a single store call
//
// Ingest is not best effort. If any chunk fails to embed, nothing is
// written; if the store rejects the batch, the error is returned.
package ingestion
