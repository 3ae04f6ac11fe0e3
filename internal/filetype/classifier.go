package filetype

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the coarse file classification driving the extraction path.
type Kind int

const (
	Unsupported Kind = iota
	PDF
	Image
)

func (k Kind) String() string {
	switch k {
	case PDF:
		return "pdf"
	case Image:
		return "image"
	default:
		return "unsupported"
	}
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// Classifier decides PDF vs. image vs. unsupported from filename and,
// when a path is supplied, from magic bytes.
type Classifier struct{}

// New creates a new classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify returns the kind of the file. First match wins: extension,
// MIME type resolved from the filename, then content sniffing when path
// is non-empty. Pure over its inputs; no side effects.
func (c *Classifier) Classify(filename, path string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))

	if ext == ".pdf" {
		return PDF
	}
	if imageExtensions[ext] {
		return Image
	}

	// Extension inconclusive; resolve MIME type from the name alone.
	if mt := mime.TypeByExtension(ext); mt != "" {
		if k, ok := kindFromMIME(mt); ok {
			return k
		}
	}

	// Still inconclusive; sniff actual content if we have it.
	if path != "" {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("content sniffing failed")
			return Unsupported
		}
		log.Debug().Str("mime", mtype.String()).Str("file", path).Msg("sniffed file type")
		if k, ok := kindFromMIME(mtype.String()); ok {
			return k
		}
	}

	return Unsupported
}

func kindFromMIME(mt string) (Kind, bool) {
	// strip parameters like "; charset=utf-8"
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.TrimSpace(mt)
	switch {
	case mt == "application/pdf":
		return PDF, true
	case strings.HasPrefix(mt, "image/"):
		return Image, true
	}
	return Unsupported, false
}

// ExtensionForContent sniffs the file at path and returns a suitable
// extension (".pdf", ".png", ...) for uploads that arrived without one,
// or "" when the content is not a supported type.
func (c *Classifier) ExtensionForContent(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	if k, ok := kindFromMIME(mtype.String()); ok && k != Unsupported {
		return mtype.Extension()
	}
	return ""
}
