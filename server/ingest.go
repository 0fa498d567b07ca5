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
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/ingestion"
)

type ingestBody struct {
	Documents []*core.Document `json:"documents"`
}

type ingestResponse struct {
	OK        bool `json:"ok"`
	Upserted  int  `json:"upserted"`
	Documents int  `json:"documents"`
}

func (s *Server) ingest(c *gin.Context) {
	var body ingestBody
	if !bindJSON(c, &body) {
		return
	}

	res, err := s.ingester.Ingest(c.Request.Context(), body.Documents, &ingestion.IngestOptions{
		Source: ingestion.SourceAPI,
	})
	if err != nil {
		writeError(c, err, "ingest failed")
		return
	}
	c.JSON(http.StatusOK, ingestResponse{OK: true, Upserted: res.Records, Documents: res.Documents})
}

// upload ingests multipart "files". PDF and text files are converted to
// documents; empty or unsupported files are skipped.
func (s *Server) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		badRequest(c, "No files uploaded")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		badRequest(c, "No files uploaded")
		return
	}
	if len(files) > s.maxUploadFiles {
		badRequest(c, fmt.Sprintf("too many files: %d (max %d)", len(files), s.maxUploadFiles))
		return
	}

	equipmentID := c.Query("equipmentId")
	if equipmentID == "" {
		equipmentID = c.Query("machineId")
	}

	docs := make([]*core.Document, 0, len(files))
	for _, fh := range files {
		if fh.Size > s.maxUploadBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("%s exceeds the %d MB upload limit", fh.Filename, s.maxUploadBytes>>20),
			})
			return
		}
		data, err := readFormFile(fh)
		if err != nil {
			writeError(c, err, "upload ingest failed")
			return
		}
		doc, err := ingestion.DocumentFromFile(fh.Filename, fh.Header.Get("Content-Type"), data, equipmentID)
		if err != nil {
			s.logger.Warn("skipping uploaded file", "file", fh.Filename, "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		badRequest(c, "Unsupported or empty files")
		return
	}

	res, err := s.ingester.Ingest(c.Request.Context(), docs, &ingestion.IngestOptions{
		Source:      ingestion.SourceUpload,
		EquipmentID: equipmentID,
	})
	if err != nil {
		writeError(c, err, "upload ingest failed")
		return
	}
	c.JSON(http.StatusOK, ingestResponse{OK: true, Upserted: res.Records, Documents: res.Documents})
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
