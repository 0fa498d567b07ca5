package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFromFile(t *testing.T) {
	data := []byte("Printer A: clear the fuser before replacing the drum.")

	doc, err := DocumentFromFile("uploads/manual.txt", "text/plain", data, "printer-a")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentIDFromContent("manual.txt", data), doc.ID)
	assert.Equal(t, string(data), doc.Text)
	assert.Equal(t, "printer-a", doc.EquipmentID)

	again, err := DocumentFromFile("manual.txt", "", data, "")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID, "identical content gets the same id")

	_, err = DocumentFromFile("photo.png", "image/png", data, "")
	assert.ErrorIs(t, err, extract.ErrUnsupportedType)

	_, err = DocumentFromFile("blank.md", "", []byte("   \n"), "")
	assert.ErrorIs(t, err, extract.ErrNoText)
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Scanner C\nRecalibrate weekly."), 0o644))

	doc, err := ReadDocument(path, "")
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Recalibrate weekly.")
	assert.Contains(t, doc.ID, "notes.md-")

	_, err = ReadDocument(filepath.Join(t.TempDir(), "missing.txt"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
