package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/resilience"
)

const defaultBaseURL = "https://clinicaltrials.gov/api/v2/studies"

// RegistryOptions configures the registry client.
type RegistryOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RateLimit is requests per second against the registry. The public API
	// tolerates low single digits.
	RateLimit rate.Limit
	Burst     int
	Cache     *Cache
}

// RegistryClient fetches study documents from the ClinicalTrials.gov v2 API.
type RegistryClient struct {
	client  *http.Client
	opts    RegistryOptions
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewRegistryClient creates a registry client with the given options.
func NewRegistryClient(opts RegistryOptions) *RegistryClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "clinical-trial/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 3
	}
	if opts.Burst == 0 {
		opts.Burst = 3
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("clinicaltrials", "fetch")
	return &RegistryClient{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		retry:   retry,
	}
}

// Fetch returns the record for a trial. The identifier is validated before any
// network call; a malformed one is a ValidationError. Cache hits within the
// TTL skip the network entirely.
func (c *RegistryClient) Fetch(ctx context.Context, nctID string) (*model.TrialRecord, error) {
	if !model.ValidNCTID(nctID) {
		return nil, resilience.NewValidationError("invalid trial identifier %q: want NCT followed by 8 digits", nctID)
	}

	if c.opts.Cache != nil {
		if raw, ok := c.opts.Cache.Get(nctID); ok {
			zap.L().Debug("trial record served from cache", zap.String("nct_id", nctID))
			return Decode(raw)
		}
	}

	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.download(ctx, nctID)
	})
	if err != nil {
		return nil, err
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.Put(nctID, raw); err != nil {
			zap.L().Warn("failed to cache trial record",
				zap.String("nct_id", nctID), zap.Error(err))
		}
	}
	return Decode(raw)
}

func (c *RegistryClient) download(ctx context.Context, nctID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/"+nctID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "fetch %s", nctID)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("fetcher: http %d from registry", resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("fetcher: unexpected status %d fetching %s", resp.StatusCode, nctID)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: read body"), 0)
	}
	return raw, nil
}
