package render

import (
	"context"
	"time"
)

// Snapshot is the outcome of rendering a single URL, either through a headless
// browser tab or a plain HTTP fetch.
type Snapshot struct {
	URL        string
	StatusCode int // 0 when the renderer cannot observe it (browser tabs)
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
}

// Renderer turns a URL into a Snapshot of its DOM-content-loaded HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (*Snapshot, error)
}
