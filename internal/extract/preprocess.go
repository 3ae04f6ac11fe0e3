package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// Preprocess converts an image to grayscale and binarizes it with an
// Otsu threshold. OCR accuracy on scanned lab reports improves
// markedly on clean black-and-white input.
func Preprocess(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)

	threshold := otsuThreshold(gray)

	out := image.NewGray(bounds)
	for i, p := range gray.Pix {
		if p > threshold {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// otsuThreshold picks the threshold maximizing between-class variance
// over the grayscale histogram.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	for _, p := range gray.Pix {
		hist[p]++
	}
	total := len(gray.Pix)
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var best float64
	var threshold uint8
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// EncodePNG serializes an image for handoff to the OCR engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
