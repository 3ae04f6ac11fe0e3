package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/medextract/internal/config"
	"github.com/local/medextract/internal/filetype"
	"github.com/local/medextract/internal/metrics"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Result describes one extraction run. A per-page OCR failure is
// logged and skipped; Err is only set when no text could be produced
// at all.
type Result struct {
	Text      string
	PageCount int
	OCRUsed   bool
	CharCount int
	WordCount int
	Duration  time.Duration
	Width     int
	Height    int
	Format    string
	Err       error
}

// Engine extracts text from PDFs and scanned images. PDFs with a real
// text layer are read natively; everything else is rasterized and run
// through OCR.
type Engine struct {
	cfg config.ExtractionConfig
	ocr *OCR
}

func NewEngine(cfg config.ExtractionConfig) *Engine {
	return &Engine{
		cfg: cfg,
		ocr: NewOCR(cfg.TesseractBin, cfg.OCRLanguages, cfg.OCRPSM, cfg.OCRDPI),
	}
}

// OCRAvailable probes the OCR binary once at startup.
func (e *Engine) OCRAvailable() bool { return e.ocr.Available() }

// Extract pulls text out of the file at path. forceOCR skips the
// native PDF text layer even when one exists. Failures are captured in
// Result.Err with empty text rather than returned; the caller's
// minimum-length check turns them into the terminal error.
func (e *Engine) Extract(ctx context.Context, path string, kind filetype.Kind, forceOCR bool) Result {
	start := time.Now()

	var res Result
	var err error
	switch kind {
	case filetype.PDF:
		res, err = e.extractPDF(ctx, path, forceOCR)
	case filetype.Image:
		res, err = e.extractImage(ctx, path)
	default:
		err = fmt.Errorf("unsupported file kind %q", kind)
	}
	if err != nil {
		log.Warn().Err(err).Str("file", path).Str("kind", kind.String()).Msg("text extraction failed")
		return Result{Err: err, Duration: time.Since(start)}
	}

	res.Duration = time.Since(start)
	res.CharCount = len(res.Text)
	res.WordCount = len(strings.Fields(res.Text))

	method := "native"
	if res.OCRUsed {
		method = "ocr"
	}
	metrics.ObserveExtraction(kind.String(), method, res.Duration)
	log.Info().
		Str("file", path).
		Str("kind", kind.String()).
		Str("method", method).
		Int("pages", res.PageCount).
		Int("chars", res.CharCount).
		Dur("duration", res.Duration).
		Msg("text extracted")
	return res
}

func (e *Engine) extractPDF(ctx context.Context, path string, forceOCR bool) (Result, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	e.crossCheckPageCount(path, pages)

	if !forceOCR {
		text := nativeText(doc, pages)
		if len(strings.TrimSpace(text)) >= e.cfg.NativeThreshold {
			return Result{Text: text, PageCount: pages, Format: "pdf"}, nil
		}
		log.Info().Str("file", path).Int("chars", len(strings.TrimSpace(text))).
			Msg("native text layer too thin, falling back to OCR")
	}

	text, err := e.ocrPDF(ctx, doc, pages)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, PageCount: pages, OCRUsed: true, Format: "pdf"}, nil
}

func nativeText(doc *fitz.Document, pages int) string {
	var b strings.Builder
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("native text extraction failed for page")
			continue
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

// ocrPDF renders pages sequentially (the document handle is not safe
// for concurrent use) and recognizes them on a bounded worker pool,
// reassembling the output in page order.
func (e *Engine) ocrPDF(ctx context.Context, doc *fitz.Document, pages int) (string, error) {
	type page struct {
		index int
		png   []byte
	}

	rendered := make([]page, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := doc.ImageDPI(i, float64(e.cfg.OCRDPI))
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("page render failed")
			continue
		}
		pngData, err := EncodePNG(Preprocess(img))
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("page preprocessing failed")
			continue
		}
		rendered = append(rendered, page{index: i, png: pngData})
	}
	if len(rendered) == 0 {
		return "", fmt.Errorf("no pages could be rendered for OCR")
	}

	workers := e.cfg.OCRWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(rendered) {
		workers = len(rendered)
	}

	texts := make([]string, pages)
	jobs := make(chan page)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				text, err := e.ocr.Run(ctx, p.png)
				if err != nil {
					log.Warn().Err(err).Int("page", p.index+1).Msg("ocr failed for page")
					continue
				}
				texts[p.index] = text
			}
		}()
	}
	for _, p := range rendered {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	metrics.AddOCRPages(len(rendered))

	parts := make([]string, 0, pages)
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("ocr produced no text")
	}
	return strings.Join(parts, "\n\n"), nil
}

func (e *Engine) extractImage(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open image: %w", err)
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	pngData, err := EncodePNG(Preprocess(img))
	if err != nil {
		return Result{}, err
	}

	text, err := e.ocr.Run(ctx, pngData)
	if err != nil {
		return Result{}, fmt.Errorf("ocr image: %w", err)
	}
	metrics.AddOCRPages(1)

	return Result{
		Text:      text,
		PageCount: 1,
		OCRUsed:   true,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    format,
	}, nil
}

// crossCheckPageCount compares the go-fitz page count against pdfcpu.
// A mismatch usually means a damaged document worth flagging in logs.
func (e *Engine) crossCheckPageCount(path string, pages int) {
	n, err := api.PageCountFile(path)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("pdfcpu page count unavailable")
		return
	}
	if n != pages {
		log.Warn().Str("file", path).Int("mupdf_pages", pages).Int("pdfcpu_pages", n).
			Msg("page count mismatch between pdf engines")
	}
}
