package sink

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSave(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	saved, err := l.Save(context.Background(), Artifacts{
		RequestID:    "req-123",
		OriginalName: "report.pdf",
		Original:     []byte("%PDF-1.4"),
		RawText:      "Hemoglobin: 13.5 g/dL",
		ResultJSON:   []byte(`{"ok": true}`),
	})
	require.NoError(t, err)

	original, err := os.ReadFile(saved.OriginalPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), original)
	assert.Contains(t, saved.OriginalPath, "req-123_original.pdf")

	text, err := os.ReadFile(saved.TextPath)
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin: 13.5 g/dL", string(text))

	result, err := os.ReadFile(saved.ResultPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(result))
}

func TestLocalSavePartialArtifacts(t *testing.T) {
	l := NewLocal(t.TempDir())

	saved, err := l.Save(context.Background(), Artifacts{
		RequestID: "req-456",
		RawText:   "some text",
	})
	require.NoError(t, err)
	assert.Empty(t, saved.OriginalPath)
	assert.Empty(t, saved.ResultPath)
	assert.NotEmpty(t, saved.TextPath)
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".pdf", safeExt("report.pdf"))
	assert.Equal(t, ".png", safeExt("SCAN.PNG"))
	assert.Equal(t, "", safeExt("noext"))
	assert.Equal(t, "", safeExt("weird.extensiontoolong"))
}
