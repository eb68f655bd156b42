// Package summarize turns page text into an LLM-written summary using one of
// a fixed set of providers.
package summarize

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/errors"
)

const (
	// DefaultProvider is used when neither the request nor config names one.
	DefaultProvider = ProviderAnthropic

	// DefaultInstructions is the prompt used when no custom instructions are set.
	DefaultInstructions = "Please provide a concise summary of the following content. " +
		"Focus on the main points, key takeaways, and any important insights."

	// MaxContentChars is the longest content, in characters, sent to a provider.
	MaxContentChars = 400000

	// TruncationMarker is appended to content cut at MaxContentChars.
	TruncationMarker = "\n\n[Content truncated due to length...]"

	// MaxOutputTokens bounds the length of every summary.
	MaxOutputTokens = 1024
)

// Request is a single summarization call. Empty fields fall back to config
// and then to provider defaults.
type Request struct {
	Content      string
	Instructions string
	Provider     string
	Model        string
	APIKey       string
}

// Dispatcher routes summarization requests to the named provider.
type Dispatcher struct {
	providers       map[string]Provider
	defaultProvider string
	defaultModel    string
	limiter         *rate.Limiter
}

// NewDispatcher registers the built-in providers. A nil client gets one with
// the configured LLM timeout.
func NewDispatcher(cfg *config.Config, client *http.Client) *Dispatcher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second}
	}

	baseURL := func(name string) string {
		return strings.TrimRight(cfg.ProviderBaseURLs[name], "/")
	}

	d := &Dispatcher{
		providers: map[string]Provider{
			ProviderAnthropic: newAnthropic(client, baseURL(ProviderAnthropic)),
			ProviderOpenAI:    newOpenAI(client, baseURL(ProviderOpenAI)),
			ProviderGemini:    newGemini(client, baseURL(ProviderGemini)),
		},
		defaultProvider: strings.TrimSpace(cfg.LLMProvider),
		defaultModel:    strings.TrimSpace(cfg.LLMModel),
	}

	if cfg.LLMRequestsPerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.LLMRequestsPerMinute)), 1)
	}

	return d
}

// Providers returns the registered provider names, sorted.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for name := range d.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize resolves provider, model and credential for req, then asks the
// provider for a summary. Resolution failures are CONFIGURATION errors;
// provider and transport failures are SUMMARIZATION_FAILED errors.
func (d *Dispatcher) Summarize(ctx context.Context, req Request) (string, error) {
	provider, completion, err := d.resolve(req)
	if err != nil {
		return "", err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", errors.NewSummarizationFailed(provider.Name(), err)
		}
	}

	log := logrus.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"model":    completion.Model,
	})
	log.Debug("Requesting summary")

	start := time.Now()
	text, err := provider.Complete(ctx, completion)
	if err != nil {
		log.WithError(err).Warn("Summarization failed")
		return "", errors.NewSummarizationFailed(provider.Name(), err)
	}
	log.WithField("duration", time.Since(start)).Debug("Summary received")

	return text, nil
}

// resolve picks the provider and builds the completion for req.
func (d *Dispatcher) resolve(req Request) (Provider, Completion, error) {
	name := strings.ToLower(firstNonBlank(req.Provider, d.defaultProvider, DefaultProvider))
	provider, ok := d.providers[name]
	if !ok {
		return nil, Completion{}, errors.NewUnknownProvider(name, d.Providers())
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(provider.CredentialEnv()))
	}
	if apiKey == "" {
		return nil, Completion{}, errors.NewMissingCredential(provider.Name(), provider.CredentialEnv())
	}

	completion := Completion{
		Prompt:    BuildPrompt(req.Instructions, req.Content),
		Model:     firstNonBlank(req.Model, d.defaultModel, provider.DefaultModel()),
		APIKey:    apiKey,
		MaxTokens: MaxOutputTokens,
	}
	return provider, completion, nil
}

// BuildPrompt combines instructions (or DefaultInstructions when blank) with
// truncated content.
func BuildPrompt(instructions, content string) string {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	return instructions + "\n\nContent:\n\n" + TruncateContent(content)
}

// TruncateContent cuts content longer than MaxContentChars characters and
// appends TruncationMarker.
func TruncateContent(content string) string {
	if len(content) <= MaxContentChars {
		return content
	}
	count := 0
	for i := range content {
		if count == MaxContentChars {
			return content[:i] + TruncationMarker
		}
		count++
	}
	return content
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
