// Package fetch downloads web pages and reduces them to plain text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/errors"
)

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 10 << 20

// strippedElements never carry readable page text.
const strippedElements = "script, style, nav, header, footer, noscript, template"

// Fetcher retrieves pages over HTTP and extracts their visible text.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	useReadability bool
}

// NewFetcher builds a Fetcher from cfg. A nil client gets one with the configured timeout.
func NewFetcher(cfg *config.Config, client *http.Client) *Fetcher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second}
	}
	return &Fetcher{
		client:         client,
		userAgent:      cfg.FetchUserAgent,
		useReadability: cfg.UseReadability,
	}
}

// Fetch returns the cleaned text of the page at rawURL.
// Any failure is logged and reported as ("", false).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, bool) {
	text, err := f.FetchText(ctx, rawURL)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"url":   rawURL,
			"error": err,
		}).Warn("Failed to fetch page content")
		return "", false
	}
	return text, true
}

// FetchText is Fetch with the failure reason as a FETCH_FAILED error.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return "", errors.NewFetchFailed(rawURL, fmt.Errorf("invalid URL"))
	}

	body, err := f.get(ctx, rawURL)
	if err != nil {
		return "", errors.NewFetchFailed(rawURL, err)
	}

	if f.useReadability {
		parser := readability.NewParser()
		article, err := parser.Parse(strings.NewReader(body), parsedURL)
		if err == nil && strings.TrimSpace(article.Content) != "" {
			body = article.Content
		} else {
			logrus.WithField("url", rawURL).Debug("Readability found no article, using full page")
		}
	}

	text, err := ExtractText(body)
	if err != nil {
		return "", errors.NewFetchFailed(rawURL, err)
	}
	if text == "" {
		return "", errors.NewFetchFailed(rawURL, fmt.Errorf("page has no readable text"))
	}

	return text, nil
}

// get performs the request and returns the body decoded to UTF-8.
func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(data), nil
}

// ExtractText strips non-content elements from an HTML document and returns
// its text, one trimmed fragment per line.
func ExtractText(document string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(strippedElements).Remove()

	var lines []string
	for _, n := range doc.Nodes {
		lines = appendTextNodes(lines, n)
	}

	return Normalize(strings.Join(lines, "\n")), nil
}

// appendTextNodes collects the trimmed, non-empty text nodes under n in document order.
func appendTextNodes(lines []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			lines = append(lines, text)
		}
		return lines
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = appendTextNodes(lines, c)
	}
	return lines
}

// Normalize trims every line, splits lines on double spaces, and drops empty fragments.
func Normalize(text string) string {
	chunks := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, "\n")
}
