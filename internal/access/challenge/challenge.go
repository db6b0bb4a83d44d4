// Package challenge supplies the sentence a user must read aloud during
// voice verification.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// Fallback is used whenever no other sentence can be produced.
const Fallback = "It took him a while to realize that everything he decided not to change, he was actually choosing."

// Source draws a fresh challenge sentence.  Implementations never fail;
// they degrade to Fallback.
type Source interface {
	Sentence(ctx context.Context) string
}

// Corpus picks uniformly from a fixed list using crypto/rand.
type Corpus []string

// DefaultCorpus is a set of sentences of similar length and phonetic
// spread.
var DefaultCorpus = Corpus{
	Fallback,
	"The quiet river carried the yellow leaves past the old mill before the evening rain arrived.",
	"Seven brave sailors followed the northern lights across a frozen sea toward the distant harbor.",
	"A curious child counted the blue kites drifting above the park while her brother fixed his bicycle.",
	"Every Thursday the baker opened his shop early and sold warm bread to the workers from the station.",
	"The museum guide explained how the ancient clock measured time using water, sand and falling weights.",
	"Bright copper pans hung above the stove while the chef tasted the soup and added a pinch of salt.",
	"Our train stopped briefly at a small village where farmers loaded baskets of apples onto the platform.",
}

func (c Corpus) Sentence(context.Context) string {
	if len(c) == 0 {
		return Fallback
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(c))))
	if err != nil {
		return c[0]
	}
	return c[n.Int64()]
}

// Remote fetches a quotation from an HTTP API returning {"content": "..."}
// and falls back to Local when the API is unreachable or returns nothing
// usable.
type Remote struct {
	URL    string
	Client *http.Client
	Local  Source
	Logger *slog.Logger
}

func NewRemote(url string, timeout time.Duration, local Source, logger *slog.Logger) *Remote {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if local == nil {
		local = DefaultCorpus
	}
	return &Remote{URL: url, Client: &http.Client{Timeout: timeout}, Local: local, Logger: logger}
}

func (r *Remote) Sentence(ctx context.Context) string {
	s, err := r.fetch(ctx)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("challenge source unavailable, using local corpus", "error", err)
		}
		return r.Local.Sentence(ctx)
	}
	return s
}

func (r *Remote) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	s := strings.TrimSpace(body.Content)
	if s == "" {
		return "", fmt.Errorf("empty content")
	}
	return s, nil
}
