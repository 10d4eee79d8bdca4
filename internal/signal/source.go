package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Source produces the signals a trade-entry cycle consumes.
type Source interface {
	FetchSignals(ctx context.Context) []Signal
}

// HTTPSource polls a JSON endpoint returning an array of signals.
// Fetch or parse failures never propagate: the cycle simply sees no
// signals and tries again next interval.
type HTTPSource struct {
	URL       string
	Threshold float64
	Limit     int

	client *http.Client
}

// NewHTTPSource builds a source with a bounded request timeout.
func NewHTTPSource(url string, threshold float64, limit int, timeout time.Duration) *HTTPSource {
	if limit <= 0 {
		limit = 50
	}
	return &HTTPSource{
		URL:       url,
		Threshold: threshold,
		Limit:     limit,
		client:    &http.Client{Timeout: timeout},
	}
}

// FetchSignals returns all signals with confidence >= threshold, sorted
// descending by confidence and capped at the configured limit. Invalid
// entries are skipped; any transport or decode failure yields an empty
// slice.
func (s *HTTPSource) FetchSignals(ctx context.Context) []Signal {
	if s.URL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", s.URL).Msg("FetchSignals | bad request")
		return nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("FetchSignals | fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("FetchSignals | unexpected status")
		return nil
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.Warn().Err(err).Msg("FetchSignals | decode failed")
		return nil
	}

	valid := make([]Signal, 0, len(raw))
	for _, item := range raw {
		var sig Signal
		if err := json.Unmarshal(item, &sig); err != nil {
			continue
		}
		if !sig.Valid() {
			continue
		}
		if sig.Confidence >= s.Threshold {
			valid = append(valid, sig)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Confidence > valid[j].Confidence
	})

	if len(valid) > s.Limit {
		valid = valid[:s.Limit]
	}
	return valid
}
