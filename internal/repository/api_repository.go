package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"plate-dashboard/internal/domain/anpr"
)

var (
	ErrNetwork           = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// ServerError is a non-2xx answer from the aggregation API. Message holds the
// server's `error` field verbatim when it sent one.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

const maxErrorBody = 64 * 1024

// APIRepository reads plate statistics and reads from the aggregation API.
type APIRepository struct {
	baseURL *url.URL
	client  *http.Client
	log     zerolog.Logger
}

func NewAPIRepository(baseURL string, timeout time.Duration, log zerolog.Logger) (*APIRepository, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", baseURL)
	}
	return &APIRepository{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

func (r *APIRepository) Overview(ctx context.Context) (anpr.OverviewStats, error) {
	var out anpr.OverviewStats
	if err := r.getJSON(ctx, "/api/stats/overview", nil, &out); err != nil {
		return anpr.OverviewStats{}, err
	}
	if err := out.Validate(); err != nil {
		return anpr.OverviewStats{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

func (r *APIRepository) DailyCounts(ctx context.Context, days int) ([]anpr.DailyCount, error) {
	params := url.Values{"days": {strconv.Itoa(days)}}
	var out []anpr.DailyCount
	if err := r.getJSON(ctx, "/api/stats/daily", params, &out); err != nil {
		return nil, err
	}
	for _, d := range out {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return out, nil
}

func (r *APIRepository) HourlyCounts(ctx context.Context, date string) ([]anpr.HourlyCount, error) {
	params := url.Values{"date": {date}}
	var out []anpr.HourlyCount
	if err := r.getJSON(ctx, "/api/stats/hourly", params, &out); err != nil {
		return nil, err
	}
	for _, h := range out {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return out, nil
}

func (r *APIRepository) TopPlates(ctx context.Context, limit, days int) ([]anpr.TopPlate, error) {
	params := url.Values{
		"limit": {strconv.Itoa(limit)},
		"days":  {strconv.Itoa(days)},
	}
	var out []anpr.TopPlate
	if err := r.getJSON(ctx, "/api/stats/top-plates", params, &out); err != nil {
		return nil, err
	}
	for _, p := range out {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return out, nil
}

func (r *APIRepository) SearchPlates(ctx context.Context, q anpr.PlateQuery) (anpr.PageResult, error) {
	var out anpr.PageResult
	if err := r.getJSON(ctx, "/api/placas", q.Values(), &out); err != nil {
		return anpr.PageResult{}, err
	}
	if err := out.Validate(); err != nil {
		return anpr.PageResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

func (r *APIRepository) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	// JoinPath keeps any path prefix of the base url, e.g. behind a reverse proxy.
	u := r.baseURL.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	r.log.Debug().
		Str("path", path).
		Str("query", u.RawQuery).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeServerError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func decodeServerError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &ServerError{Status: resp.StatusCode, Message: payload.Error}
	}

	msg := strings.TrimSpace(string(bytes.ToValidUTF8(body, nil)))
	if msg == "" || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ServerError{Status: resp.StatusCode, Message: msg}
}
