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


package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/wrench/answer"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/ingestion"
	"github.com/poiesic/wrench/storage"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case core.IsValidationError(err):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, ingestion.ErrEmbeddingFailed),
		errors.Is(err, ingestion.ErrUpsertFailed),
		errors.Is(err, answer.ErrCompletionFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with {"error": msg}. fallback is used when err has no message.
func writeError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": msg})
}

// badRequest responds 400 with msg.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
