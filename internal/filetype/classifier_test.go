package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyByExtension(t *testing.T) {
	c := New()

	tests := []struct {
		filename string
		want     Kind
	}{
		{"report.pdf", PDF},
		{"REPORT.PDF", PDF},
		{"scan.png", Image},
		{"scan.jpg", Image},
		{"scan.jpeg", Image},
		{"scan.tiff", Image},
		{"scan.bmp", Image},
		{"scan.gif", Image},
		{"scan.webp", Image},
		{"notes.docx", Unsupported},
		{"data.csv", Unsupported},
		{"noext", Unsupported},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.filename, ""))
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New()
	first := c.Classify("report.pdf", "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("report.pdf", ""))
	}
}

func TestClassifySniffsContent(t *testing.T) {
	c := New()
	dir := t.TempDir()

	// A file with a misleading name but PDF magic bytes.
	pdfPath := filepath.Join(dir, "upload.bin")
	err := os.WriteFile(pdfPath, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF"), 0o644)
	assert.NoError(t, err)
	assert.Equal(t, PDF, c.Classify("upload.bin", pdfPath))

	// PNG magic bytes.
	pngPath := filepath.Join(dir, "upload2.bin")
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	err = os.WriteFile(pngPath, pngHeader, 0o644)
	assert.NoError(t, err)
	assert.Equal(t, Image, c.Classify("upload2.bin", pngPath))

	// Plain text is unsupported even with sniffing.
	txtPath := filepath.Join(dir, "upload3.bin")
	err = os.WriteFile(txtPath, []byte("just some plain text content"), 0o644)
	assert.NoError(t, err)
	assert.Equal(t, Unsupported, c.Classify("upload3.bin", txtPath))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pdf", PDF.String())
	assert.Equal(t, "image", Image.String())
	assert.Equal(t, "unsupported", Unsupported.String())
}
