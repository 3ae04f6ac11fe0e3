package sink

import "context"

// Artifacts is everything worth keeping from one extraction run.
type Artifacts struct {
	RequestID    string
	OriginalName string
	ContentType  string
	Original     []byte
	RawText      string
	ResultJSON   []byte
}

// Saved points at the stored copies of the artifacts. Paths are
// backend-specific: filesystem paths for the local sink, object keys
// for S3.
type Saved struct {
	OriginalPath string `json:"original_path,omitempty"`
	TextPath     string `json:"text_path,omitempty"`
	ResultPath   string `json:"result_path,omitempty"`
}

// Sink archives the artifacts of a processed document.
type Sink interface {
	Save(ctx context.Context, a Artifacts) (Saved, error)
}

// Nop discards artifacts.
type Nop struct{}

func (Nop) Save(context.Context, Artifacts) (Saved, error) { return Saved{}, nil }
