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


package ingestion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/extract"
)

// DocumentFromFile turns an uploaded or on-disk file into a Document. The
// document id is derived from the base file name and the raw content, so
// identical files map to the same records.
func DocumentFromFile(name, contentType string, data []byte, equipmentID string) (*core.Document, error) {
	base := filepath.Base(name)
	text, err := extract.Text(base, contentType, data)
	if err != nil {
		return nil, err
	}
	return &core.Document{
		ID:          core.DocumentIDFromContent(base, data),
		Text:        text,
		EquipmentID: equipmentID,
	}, nil
}

// ReadDocument reads path from disk and converts it with DocumentFromFile.
func ReadDocument(path, equipmentID string) (*core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return DocumentFromFile(path, "", data, equipmentID)
}
