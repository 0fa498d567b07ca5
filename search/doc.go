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


// Package search implements the query-time half of retrieval.
//
// The Retriever embeds a question and queries the vector store, racing the
// combined operation against a timer with FirstOf. Retrieval fails open: a
// timeout, embedding failure, or store failure yields no contexts rather
// than an error, so an answer can still be generated from the ungrounded
// prompt.
//
// SelectContexts narrows retrieved contexts to those mentioning the piece
// of equipment the technician selected.
package search
