package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTokenizerEndpoint is the normalizer service address assumed when
// no endpoint is configured (spec.md §9 Open Question (a)).
const DefaultTokenizerEndpoint = "http://localhost:9660"

// HTTPTokenizerConfig configures HTTPTokenizer.
type HTTPTokenizerConfig struct {
	// Endpoint is the normalizer service base URL.
	Endpoint string

	// Timeout bounds a single batch request. Zero means no per-request
	// timeout is applied beyond the caller's context.
	Timeout time.Duration
}

// HTTPTokenizer calls out to an external normalizer/lemmatizer service
// over HTTP rather than implementing language-specific tokenization in
// this repository (spec.md §1: tokenization is an external collaborator,
// a Non-goal to implement here). One request carries an entire text's
// word list so the service can batch its lemma/synonym lookups.
type HTTPTokenizer struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

var _ Tokenizer = (*HTTPTokenizer)(nil)

// NewHTTPTokenizer builds an HTTPTokenizer against cfg, applying defaults
// for an unset Endpoint.
func NewHTTPTokenizer(cfg HTTPTokenizerConfig) *HTTPTokenizer {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultTokenizerEndpoint
	}
	return &HTTPTokenizer{
		client:   &http.Client{},
		endpoint: endpoint,
		timeout:  cfg.Timeout,
	}
}

type tokenizeRequest struct {
	Language string   `json:"language"`
	Words    []string `json:"words"`
}

type tokenizeWordResponse struct {
	Form     string   `json:"form"`
	Lemmata  []string `json:"lemmata"`
	Sound    []string `json:"sound"`
	Semantic []string `json:"semantic"`
}

type tokenizeResponse struct {
	Words []tokenizeWordResponse `json:"words"`
}

// Tokenize POSTs words to the configured normalizer service's /tokenize
// route and maps its per-word response back to WordFeatures, preserving
// word order.
func (t *HTTPTokenizer) Tokenize(ctx context.Context, language string, words []string) ([]WordFeatures, error) {
	if len(words) == 0 {
		return nil, nil
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, err := json.Marshal(tokenizeRequest{Language: language, Words: words})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tokenize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/tokenize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach normalizer service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("normalizer service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode normalizer response: %w", err)
	}
	if len(result.Words) != len(words) {
		return nil, fmt.Errorf("normalizer service returned %d words for %d words given", len(result.Words), len(words))
	}

	features := make([]WordFeatures, len(result.Words))
	for i, w := range result.Words {
		features[i] = WordFeatures{Form: w.Form, Lemmata: w.Lemmata, Sound: w.Sound, Semantic: w.Semantic}
	}
	return features, nil
}
