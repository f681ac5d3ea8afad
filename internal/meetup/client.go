// Package meetup resolves event attributes through the Meetup REST API.
//
// Venue attributes for many events come from a single bulk events request;
// group attributes need one request per distinct group and are shared by
// every event of that group.
package meetup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
	"github.com/profiq/meetup-analysis-kinetica/internal/metrics"
)

const (
	kindEvents = "events"
	kindGroup  = "group"
)

// Limiter is the call budget every request is charged against
type Limiter interface {
	Permit()
	RecordCall()
}

// Config configures the Meetup API client
type Config struct {
	BaseURL    string
	EventsPath string
	APIKey     string
	Timeout    time.Duration
	// BreakerFailures opens the circuit after that many consecutive failures; 0 disables it
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Client talks to the Meetup API
type Client struct {
	config  Config
	http    *http.Client
	limiter Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewClient creates a new Meetup API client
func NewClient(config Config, limiter Limiter, log *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.meetup.com"
	}
	if config.EventsPath == "" {
		config.EventsPath = "/2/events"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		log:     log,
	}

	if config.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "meetup-api",
			Timeout: config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(config.BreakerFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	return c
}

type eventsResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Venue *struct {
			City    *string `json:"city"`
			Country *string `json:"country"`
		} `json:"venue"`
		Group *struct {
			URLName string `json:"urlname"`
		} `json:"group"`
	} `json:"results"`
}

type groupResponse struct {
	Members        *int64 `json:"members"`
	PastEventCount *int32 `json:"past_event_count"`
}

// LookupMany resolves attributes for the given event ids. The result holds
// an entry for every id; failed requests yield LookupError entries with
// absent attributes. N events in K distinct groups cost 1 + K requests.
func (c *Client) LookupMany(ctx context.Context, eventIDs []string) map[string]domain.LookupResult {
	results := make(map[string]domain.LookupResult, len(eventIDs))
	if len(eventIDs) == 0 {
		return results
	}

	var events eventsResponse
	if err := c.get(ctx, kindEvents, c.config.BaseURL+c.config.EventsPath,
		url.Values{"event_id": {strings.Join(eventIDs, ",")}}, &events); err != nil {
		c.log.Warn("Event lookup failed, attributes left absent",
			zap.Int("event_count", len(eventIDs)),
			zap.Error(err))
		for _, id := range eventIDs {
			results[id] = domain.LookupFailed(err.Error())
		}
		return results
	}

	var groupOrder []string
	members := make(map[string][]string)

	for _, ev := range events.Results {
		var attrs domain.Attributes
		if ev.Venue != nil {
			attrs.City = ev.Venue.City
			attrs.Country = ev.Venue.Country
		}
		results[ev.ID] = domain.Found(attrs)

		if ev.Group == nil || ev.Group.URLName == "" {
			continue
		}
		if _, seen := members[ev.Group.URLName]; !seen {
			groupOrder = append(groupOrder, ev.Group.URLName)
		}
		members[ev.Group.URLName] = append(members[ev.Group.URLName], ev.ID)
	}

	for _, urlname := range groupOrder {
		group, err := c.lookupGroup(ctx, urlname)
		if err != nil {
			c.log.Warn("Group lookup failed, group attributes left absent",
				zap.String("group", urlname),
				zap.Error(err))
			continue
		}
		for _, id := range members[urlname] {
			res := results[id]
			res.Attributes = res.Attributes.WithGroup(group)
			results[id] = res
		}
	}

	for _, id := range eventIDs {
		if _, ok := results[id]; !ok {
			results[id] = domain.NotFound()
		}
	}

	c.log.Debug("Resolved events using Meetup API",
		zap.Int("requested", len(eventIDs)),
		zap.Int("found", len(events.Results)),
		zap.Int("groups", len(groupOrder)))

	return results
}

func (c *Client) lookupGroup(ctx context.Context, urlname string) (domain.Attributes, error) {
	var group groupResponse
	err := c.get(ctx, kindGroup, c.config.BaseURL+"/"+url.PathEscape(urlname),
		url.Values{"fields": {"past_event_count"}}, &group)
	if err != nil {
		return domain.Attributes{}, err
	}

	return domain.Attributes{
		GroupMembers: group.Members,
		GroupEvents:  group.PastEventCount,
	}, nil
}

// statusError is a non-success HTTP response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// get issues one throttled GET request and decodes the JSON body into out
func (c *Client) get(ctx context.Context, kind, endpoint string, params url.Values, out interface{}) error {
	params.Set("key", c.config.APIKey)
	requestURL := endpoint + "?" + params.Encode()

	c.limiter.Permit()
	body, err := c.execute(ctx, requestURL)
	c.limiter.RecordCall()

	outcome := "ok"
	defer func() {
		metrics.RemoteRequestsTotal.WithLabelValues(kind, outcome).Inc()
	}()

	if err != nil {
		var se *statusError
		switch {
		case errors.As(err, &se):
			outcome = fmt.Sprintf("http_%d", se.code)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "breaker_open"
		default:
			outcome = "transport_error"
		}
		return err
	}

	if len(body) == 0 {
		outcome = "empty"
		return errors.New("empty response body")
	}

	if err := json.Unmarshal(body, out); err != nil {
		outcome = "decode_error"
		return fmt.Errorf("failed to decode %s response: %w", kind, err)
	}

	return nil
}

func (c *Client) execute(ctx context.Context, requestURL string) ([]byte, error) {
	if c.breaker == nil {
		return c.do(ctx, requestURL)
	}

	var notOK *statusError
	body, err := c.breaker.Execute(func() (interface{}, error) {
		b, err := c.do(ctx, requestURL)
		// only server side failures count against the breaker
		if errors.As(err, &notOK) && notOK.code < http.StatusInternalServerError {
			return nil, nil
		}
		return b, err
	})
	if notOK != nil && notOK.code < http.StatusInternalServerError {
		return nil, notOK
	}
	if err != nil {
		return nil, err
	}

	b, _ := body.([]byte)
	return b, nil
}

func (c *Client) do(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactKey(urlErr.URL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &statusError{code: resp.StatusCode, body: snippet}
	}

	return body, nil
}

// redactKey hides the API key so request URLs can be logged
func redactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
