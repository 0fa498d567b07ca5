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
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/wrench/core"
)

// queryBody is the JSON body of /query and /query/stream. machine and
// machineId are accepted as aliases of equipmentName and equipmentId.
type queryBody struct {
	Query         string                  `json:"query"`
	TopK          int                     `json:"topK"`
	EquipmentName string                  `json:"equipmentName"`
	EquipmentID   string                  `json:"equipmentId"`
	Machine       string                  `json:"machine"`
	MachineID     string                  `json:"machineId"`
	History       []core.ConversationTurn `json:"history"`
}

func (b *queryBody) request() *core.QueryRequest {
	req := &core.QueryRequest{
		Query:         b.Query,
		TopK:          b.TopK,
		EquipmentName: b.EquipmentName,
		EquipmentID:   b.EquipmentID,
		History:       b.History,
	}
	if req.EquipmentName == "" {
		req.EquipmentName = b.Machine
	}
	if req.EquipmentID == "" {
		req.EquipmentID = b.MachineID
	}
	return req
}

// bindJSON decodes the body into dst, writing a 400 or 413 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		badRequest(c, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) query(c *gin.Context) {
	var body queryBody
	if !bindJSON(c, &body) {
		return
	}

	ans, err := s.engine.Answer(c.Request.Context(), body.request())
	if err != nil {
		writeError(c, err, "query failed")
		return
	}
	c.JSON(http.StatusOK, ans)
}

// queryStream writes NDJSON: one contexts line, then delta lines, each
// flushed as soon as it is produced. Errors before the first line get a
// normal JSON error response; a completion failure afterwards ends the
// stream with an error line.
func (s *Server) queryStream(c *gin.Context) {
	var body queryBody
	if !bindJSON(c, &body) {
		return
	}

	started := false
	emit := func(event core.StreamEvent) error {
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if !started {
			started = true
			c.Header("Content-Type", "application/x-ndjson")
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		if _, err := c.Writer.Write(append(line, '\n')); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	ctx := c.Request.Context()
	err := s.engine.Stream(ctx, body.request(), emit)
	switch {
	case err == nil:
	case !started:
		writeError(c, err, "query stream failed")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		s.logger.Debug("client went away mid-stream", "request_id", c.GetString(requestIDKey))
	default:
		_ = c.Error(err)
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = "query stream failed"
		}
		if emitErr := emit(core.ErrorEvent(msg)); emitErr != nil {
			s.logger.Debug("error line not delivered", "err", emitErr)
		}
	}
}
