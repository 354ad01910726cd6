// Package cowin is the client for the public vaccination appointment
// calendar API. It flattens the per-center calendar into entity.Session values.
package cowin

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/observability/logging"
	"vaxslot-notifier/internal/pkg/validate"
	"vaxslot-notifier/internal/resilience/circuitbreaker"
	"vaxslot-notifier/internal/resilience/retry"
	"vaxslot-notifier/internal/usecase/poll"

	"golang.org/x/time/rate"
)

const calendarByDistrictPath = "/api/v2/appointment/sessions/public/calendarByDistrict"

// DateLayout is the dd-mm-yyyy layout the API expects and returns.
const DateLayout = "02-01-2006"

// Client implements poll.AvailabilityFetcher.
//
// Thread safety: Client is safe for concurrent use.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	retryConfig    retry.Config
}

// NewClient creates a Client with a circuit breaker, retry policy and a
// process-wide rate limiter.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		circuitBreaker: circuitbreaker.New(circuitbreaker.AvailabilityAPIConfig()),
		limiter:        rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		retryConfig:    retry.AvailabilityAPIConfig(),
	}
}

// calendarResponse mirrors the calendarByDistrict document.
// Sessions are kept raw so each one can be snapshotted verbatim.
type calendarResponse struct {
	Centers []center `json:"centers"`
}

type center struct {
	CenterID     int64             `json:"center_id"`
	Name         string            `json:"name"`
	StateName    string            `json:"state_name"`
	DistrictName string            `json:"district_name"`
	Pincode      json.Number       `json:"pincode"`
	FeeType      string            `json:"fee_type"`
	Sessions     []json.RawMessage `json:"sessions"`
	VaccineFees  []vaccineFee      `json:"vaccine_fees"`
}

type vaccineFee struct {
	Vaccine string `json:"vaccine"`
	Fee     string `json:"fee"`
}

type sessionPayload struct {
	SessionID         string   `json:"session_id"`
	Date              string   `json:"date"`
	AvailableCapacity *int     `json:"available_capacity"`
	Dose1Capacity     *int     `json:"available_capacity_dose1"`
	Dose2Capacity     *int     `json:"available_capacity_dose2"`
	MinAgeLimit       *int     `json:"min_age_limit"`
	Vaccine           string   `json:"vaccine"`
	Slots             []string `json:"slots"`
}

// Fetch returns every session the API lists for regionID on date (dd-mm-yyyy).
//
// Errors:
//   - poll.ErrFetchFailed: transport failure, non-2xx status, or open circuit
//   - poll.ErrInvalidPayload: 2xx response that is not a calendar document
func (c *Client) Fetch(ctx context.Context, regionID, date string) ([]entity.Session, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", poll.ErrFetchFailed, err)
	}

	endpoint := c.calendarURL(regionID, date)

	var body []byte
	err := retry.WithBackoff(ctx, c.retryConfig, func() error {
		var err error
		body, err = circuitbreaker.Do(c.circuitBreaker, func() ([]byte, error) {
			return c.doFetch(ctx, endpoint)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: region %s: %w", poll.ErrFetchFailed, regionID, err)
	}

	return c.normalize(ctx, regionID, body)
}

func (c *Client) calendarURL(regionID, date string) string {
	q := url.Values{}
	q.Set("district_id", regionID)
	q.Set("date", date)
	return strings.TrimRight(c.config.BaseURL, "/") + calendarByDistrictPath + "?" + q.Encode()
}

// doFetch performs one HTTP round trip. Non-2xx statuses come back as
// *retry.HTTPError so the retry policy can classify them.
func (c *Client) doFetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "hi_IN")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	limited := io.LimitReader(resp.Body, c.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if int64(len(body)) > c.config.MaxBodySize {
		return nil, fmt.Errorf("response size exceeds limit %d bytes", c.config.MaxBodySize)
	}

	return body, nil
}

// normalize flattens centers[].sessions[] into sessions. Sessions missing an
// id or center name are dropped and logged.
func (c *Client) normalize(ctx context.Context, regionID string, body []byte) ([]entity.Session, error) {
	var doc calendarResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: region %s: %w", poll.ErrInvalidPayload, regionID, err)
	}

	logger := logging.FromContext(ctx)
	sessions := make([]entity.Session, 0, len(doc.Centers))

	for _, ctr := range doc.Centers {
		for _, raw := range ctr.Sessions {
			var p sessionPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				logger.Warn("dropping malformed session",
					"region_id", regionID,
					"center_id", ctr.CenterID,
					"error", err)
				continue
			}

			s := entity.Session{
				ID:                p.SessionID,
				CenterID:          ctr.CenterID,
				CenterName:        ctr.Name,
				DistrictName:      ctr.DistrictName,
				StateName:         ctr.StateName,
				Pincode:           ctr.Pincode.String(),
				FeeType:           ctr.FeeType,
				Date:              p.Date,
				Vaccine:           p.Vaccine,
				Fee:               feeFor(ctr.VaccineFees, p.Vaccine),
				AvailableCapacity: p.AvailableCapacity,
				Dose1Capacity:     p.Dose1Capacity,
				Dose2Capacity:     p.Dose2Capacity,
				MinAgeLimit:       p.MinAgeLimit,
				Slots:             p.Slots,
				Raw:               append(json.RawMessage(nil), raw...),
			}

			if err := validate.Struct(s); err != nil {
				logger.Warn("dropping invalid session",
					"region_id", regionID,
					"center_id", ctr.CenterID,
					"session_id", p.SessionID,
					"error", err)
				continue
			}

			sessions = append(sessions, s)
		}
	}

	return sessions, nil
}

// feeFor returns the fee listed for vaccine, or "" when the center lists none.
func feeFor(fees []vaccineFee, vaccine string) string {
	for _, f := range fees {
		if f.Vaccine == vaccine {
			return f.Fee
		}
	}
	return ""
}

// Today returns the current date in loc formatted for the API.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
