package ops

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/lector/internal/summarize"
)

// Fetcher retrieves the readable text of a page. ok is false on any failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (text string, ok bool)
}

// Summarizer produces a summary for page content.
type Summarizer interface {
	Summarize(ctx context.Context, req summarize.Request) (string, error)
}

// Deps are the network-facing collaborators of Process.
type Deps struct {
	Fetcher    Fetcher
	Summarizer Summarizer
}

// MessageOutput is returned by operations that only report a status message.
type MessageOutput struct {
	Message string `json:"message"`
}

// newRunID returns a ULID identifying one sync or process run.
func newRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
