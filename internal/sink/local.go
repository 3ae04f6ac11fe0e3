package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Local writes artifacts under a results directory, three files per
// request keyed by request id.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	if dir == "" {
		dir = filepath.Join("uploads", "results")
	}
	return &Local{dir: dir}
}

func (l *Local) Save(_ context.Context, a Artifacts) (Saved, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("create results dir: %w", err)
	}

	var saved Saved

	if len(a.Original) > 0 {
		name := fmt.Sprintf("%s_original%s", a.RequestID, safeExt(a.OriginalName))
		p := filepath.Join(l.dir, name)
		if err := os.WriteFile(p, a.Original, 0o644); err != nil {
			return Saved{}, fmt.Errorf("save original: %w", err)
		}
		saved.OriginalPath = p
	}

	if a.RawText != "" {
		p := filepath.Join(l.dir, fmt.Sprintf("%s_extracted_text.txt", a.RequestID))
		if err := os.WriteFile(p, []byte(a.RawText), 0o644); err != nil {
			return Saved{}, fmt.Errorf("save extracted text: %w", err)
		}
		saved.TextPath = p
	}

	if len(a.ResultJSON) > 0 {
		p := filepath.Join(l.dir, fmt.Sprintf("%s_result.json", a.RequestID))
		if err := os.WriteFile(p, a.ResultJSON, 0o644); err != nil {
			return Saved{}, fmt.Errorf("save result: %w", err)
		}
		saved.ResultPath = p
	}

	log.Debug().Str("request_id", a.RequestID).Str("dir", l.dir).Msg("artifacts saved locally")
	return saved, nil
}

// safeExt keeps the original extension when it is a plain one and
// drops anything that could escape the results directory.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" || strings.ContainsAny(ext, `/\`) || len(ext) > 8 {
		return ""
	}
	return ext
}
