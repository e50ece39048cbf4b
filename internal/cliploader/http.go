package cliploader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gesture-sequencer/internal/sequencer"
)

const defaultHTTPTimeout = 5 * time.Second

// clipMetadata is the JSON document served next to each animation.
type clipMetadata struct {
	Duration float64 `json:"duration"`
	Asset    string  `json:"asset"`
}

// HTTPLoader fetches clip metadata from {baseURL}/animations/{gesture}.json,
// with the gesture lower-cased.
type HTTPLoader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLoader returns a loader against baseURL. A non-positive timeout
// selects the default of 5s.
func NewHTTPLoader(baseURL string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Load implements sequencer.ClipLoader.
func (l *HTTPLoader) Load(ctx context.Context, id sequencer.GestureID) (sequencer.Clip, error) {
	name := url.PathEscape(strings.ToLower(string(id)))
	metaURL := l.baseURL + "/animations/" + name + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return sequencer.Clip{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return sequencer.Clip{}, fmt.Errorf("fetch %s: %w", metaURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sequencer.Clip{}, fmt.Errorf("%w: %s", ErrNotFound, metaURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return sequencer.Clip{}, fmt.Errorf("fetch %s: unexpected status %d", metaURL, resp.StatusCode)
	}

	var meta clipMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return sequencer.Clip{}, fmt.Errorf("decode %s: %w", metaURL, err)
	}
	if meta.Duration <= 0 {
		return sequencer.Clip{}, fmt.Errorf("%s: invalid duration %v", metaURL, meta.Duration)
	}

	asset := meta.Asset
	if asset == "" {
		asset = l.baseURL + "/animations/" + url.PathEscape(assetName(id))
	}

	return sequencer.Clip{
		ID:       id,
		Duration: sequencer.DurationFromSeconds(meta.Duration),
		Asset:    asset,
	}, nil
}
