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


// Package reindex re-embeds every record of the local index with the
// current embedder and index dimension.
//
// Run it after switching embedding models or changing the index dimension.
// Record IDs and metadata are preserved; only vectors are replaced. Records
// are processed in ID-ordered batches and progress is written to a writer.
// There are no retries: the first failing batch stops the run, and records
// in earlier batches keep their new vectors.
package reindex
