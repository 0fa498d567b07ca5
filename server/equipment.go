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
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/wrench/core"
)

type equipmentBody struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	PosX float64 `json:"posX"`
	PosZ float64 `json:"posZ"`
}

func (s *Server) listEquipment(c *gin.Context) {
	list, err := s.equipment.ListEquipment(c.Request.Context())
	if err != nil {
		writeError(c, err, "list equipment failed")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createEquipment(c *gin.Context) {
	var body equipmentBody
	if !bindJSON(c, &body) {
		return
	}

	created, err := s.equipment.AddEquipment(c.Request.Context(), &core.Equipment{
		ID:   body.ID,
		Name: body.Name,
		PosX: body.PosX,
		PosZ: body.PosZ,
	})
	if err != nil {
		writeError(c, err, "create equipment failed")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getEquipment(c *gin.Context) {
	equipment, err := s.equipment.GetEquipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "get equipment failed")
		return
	}
	c.JSON(http.StatusOK, equipment)
}

func (s *Server) updateEquipment(c *gin.Context) {
	var body equipmentBody
	if !bindJSON(c, &body) {
		return
	}

	updated, err := s.equipment.UpdateEquipment(c.Request.Context(), &core.Equipment{
		ID:   c.Param("id"),
		Name: body.Name,
		PosX: body.PosX,
		PosZ: body.PosZ,
	})
	if err != nil {
		writeError(c, err, "update equipment failed")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteEquipment(c *gin.Context) {
	if err := s.equipment.DeleteEquipment(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "delete equipment failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DefaultEventLimit is how many events GET /events returns without ?limit.
const DefaultEventLimit = 50

// MaxEventLimit caps ?limit on GET /events.
const MaxEventLimit = 500

type eventBody struct {
	EquipmentID string `json:"equipmentId"`
	MachineID   string `json:"machineId"`
	Event       string `json:"event"`
	Details     string `json:"details"`
}

func (s *Server) appendEvent(c *gin.Context) {
	var body eventBody
	if !bindJSON(c, &body) {
		return
	}
	equipmentID := body.EquipmentID
	if equipmentID == "" {
		equipmentID = body.MachineID
	}

	event, err := s.events.AppendEvent(c.Request.Context(), &core.EquipmentEvent{
		EquipmentID: equipmentID,
		Event:       body.Event,
		Details:     body.Details,
	})
	if err != nil {
		writeError(c, err, "log event failed")
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (s *Server) recentEvents(c *gin.Context) {
	limit := DefaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxEventLimit {
			badRequest(c, fmt.Sprintf("limit must be between 1 and %d", MaxEventLimit))
			return
		}
		limit = n
	}

	events, err := s.events.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "fetch events failed")
		return
	}
	c.JSON(http.StatusOK, events)
}
