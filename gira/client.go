// Package gira is the HTTP client for the home server's paginated sensor
// metadata listing.
package gira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/pkg/tlsutil"
)

// PageSize is the number of descriptors the server returns per page; the
// offset advances by this amount after every non-empty page.
const PageSize = 1000

// Descriptor is one item of the metadata listing. Only the key and the
// free-text description are used.
type Descriptor struct {
	Key  string `json:"key"`
	Meta Meta   `json:"meta"`
}

// Meta holds the descriptor's metadata block.
type Meta struct {
	Description string `json:"description"`
}

// listing items are decoded one at a time so a malformed item does not
// cost the rest of the page.
type listing struct {
	Data struct {
		Items []json.RawMessage `json:"items"`
	} `json:"data"`
}

// Config configures the metadata client.
type Config struct {
	// Endpoint is the listing URL including its query string; the page offset
	// is appended as "&from=<n>".
	Endpoint           string        `json:"endpoint"             yaml:"endpoint"`
	Username           string        `json:"username"             yaml:"username"`
	Password           string        `json:"-"                    yaml:"-"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	CAFiles            []string      `json:"ca_files"             yaml:"ca_files"`
	Timeout            time.Duration `json:"timeout"              yaml:"timeout"`
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "gira.Config", "Validate", "endpoint is required")
	}
	if c.Timeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "gira.Config", "Validate", "timeout cannot be negative")
	}
	return nil
}

// Client fetches pages of sensor descriptors.
type Client struct {
	endpoint   string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used to report skipped descriptors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a metadata client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	tlsConfig, err := tlsutil.LoadClientTLSConfig(tlsutil.ClientConfig{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CAFiles:            cfg.CAFiles,
	})
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	c := &Client{
		endpoint:   cfg.Endpoint,
		authHeader: BasicAuth(cfg.Username, cfg.Password),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "gira_client")

	return c, nil
}

// FetchPage returns the descriptors starting at offset. An empty slice marks
// the end of the listing. Transport failures, non-2xx responses and
// undecodable bodies are returned as transient errors. Items that do not
// decode are logged and skipped; a page where every item is malformed is
// returned as an invalid-data error so the caller can move past it.
func (c *Client) FetchPage(ctx context.Context, offset int) ([]Descriptor, error) {
	url := c.endpoint + "&from=" + strconv.Itoa(offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapFatal(err, "Client", "FetchPage", "build request")
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "FetchPage", "get page")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %d", errors.ErrUnexpectedStatus, resp.StatusCode),
			"Client", "FetchPage", "get page")
	}

	var body listing
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrInvalidData, err),
			"Client", "FetchPage", "decode page")
	}

	items := make([]Descriptor, 0, len(body.Data.Items))
	for i, raw := range body.Data.Items {
		var d Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			c.logger.Warn("Skipping malformed descriptor", "offset", offset, "index", i, "error", err)
			continue
		}
		items = append(items, d)
	}

	if len(items) == 0 && len(body.Data.Items) > 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: all %d items malformed", errors.ErrInvalidData, len(body.Data.Items)),
			"Client", "FetchPage", "decode page")
	}

	return items, nil
}

// BasicAuth returns the value of an HTTP Basic Authorization header.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
