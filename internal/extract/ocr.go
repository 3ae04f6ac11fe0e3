package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// OCR shells out to the tesseract CLI. The binary reads a PNG on stdin
// and writes recognized text to stdout, so no temp files are needed.
type OCR struct {
	Bin       string
	Languages string
	PSM       int
	DPI       int
}

func NewOCR(bin, languages string, psm, dpi int) *OCR {
	if bin == "" {
		bin = "tesseract"
	}
	return &OCR{Bin: bin, Languages: languages, PSM: psm, DPI: dpi}
}

// Available reports whether the tesseract binary can be executed.
func (o *OCR) Available() bool {
	if err := exec.Command(o.Bin, "--version").Run(); err != nil {
		log.Warn().Str("bin", o.Bin).Err(err).Msg("tesseract not available")
		return false
	}
	return true
}

func (o *OCR) args() []string {
	args := []string{"-", "stdout", "--oem", "3"}
	if o.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(o.PSM))
	}
	if o.Languages != "" {
		args = append(args, "-l", o.Languages)
	}
	if o.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(o.DPI))
	}
	return args
}

// Run recognizes text in one PNG image.
func (o *OCR) Run(ctx context.Context, pngData []byte) (string, error) {
	cmd := exec.CommandContext(ctx, o.Bin, o.args()...)
	cmd.Stdin = bytes.NewReader(pngData)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}
