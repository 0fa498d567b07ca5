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


// Package extract pulls plain text out of uploaded or watched files.
//
// PDFs are read page by page; text and markdown files are read as UTF-8.
// The kind of a file is decided by its MIME type when one is given and by
// its extension otherwise.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType is returned for files that are neither PDF nor text.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrNoText is returned when a supported file holds no extractable text.
	ErrNoText = errors.New("no extractable text")

	// ErrMalformedPDF wraps PDF parser failures.
	ErrMalformedPDF = errors.New("malformed pdf")
)

// Kind classifies a file for extraction.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindText:
		return "text"
	default:
		return "unsupported"
	}
}

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Detect classifies a file by MIME type, falling back to its extension when
// the type is empty or generic.
func Detect(filename, contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch {
		case mediaType == "application/pdf":
			return KindPDF
		case strings.HasPrefix(mediaType, "text/"):
			return KindText
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return KindPDF
	case textExtensions[ext]:
		return KindText
	}
	return KindUnsupported
}

// SupportedExtension reports whether a path has an extension Detect accepts.
func SupportedExtension(path string) bool {
	return Detect(path, "") != KindUnsupported
}

// Text extracts the text of a file. Whitespace-only results are ErrNoText.
func Text(filename, contentType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch Detect(filename, contentType) {
	case KindPDF:
		text, err = PDF(data)
	case KindText:
		text = strings.ToValidUTF8(string(data), "")
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoText, filename)
	}
	return text, nil
}

// PDF returns the plain text of every page, each followed by a newline.
func PDF(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPDF, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", ErrMalformedPDF, i, err)
		}
		b.WriteString(pageText)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
