// Package vibbo talks to the Vibbo community portal: the Auth0 passwordless
// SMS login at innlogging.obos.no and the GraphQL API at vibbo.no.
package vibbo

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// Defaults mirror the portal's own web client.
const (
	DefaultAuthBaseURL   = "https://innlogging.obos.no"
	DefaultPortalBaseURL = "https://vibbo.no"
	DefaultClientID      = "XYMlspPsEnOhvvpV6plvaq6UZAT1e6IC"
	DefaultAPIVersion    = "577"
	DefaultTimeout       = 10 * time.Second

	// auth0ClientHeader is the base64 auth0.js version blob the portal sends.
	auth0ClientHeader = "eyJuYW1lIjoiYXV0aDAuanMiLCJ2ZXJzaW9uIjoiOS4zMC4wIn0="
	scope             = "openid email phone profile"
	userAgent         = "vibbobridge"
)

// Config for the portal client. Zero values fall back to the defaults above.
type Config struct {
	AuthBaseURL   string
	PortalBaseURL string
	ClientID      string
	APIVersion    string
	Timeout       time.Duration
}

func (c *Config) applyDefaults() {
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = DefaultAuthBaseURL
	}
	if c.PortalBaseURL == "" {
		c.PortalBaseURL = DefaultPortalBaseURL
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client implements ports.AuthGateway and ports.FeedGateway against the
// live portal. Safe for concurrent use; login attempts carry their own
// cookie jar in the challenge.
type Client struct {
	cfg       Config
	transport http.RoundTripper
	log       zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:       cfg,
		transport: http.DefaultTransport,
		log:       log,
	}
}

func (c *Client) redirectURI() string { return c.cfg.PortalBaseURL + "/auth/callback" }
func (c *Client) audience() string    { return c.cfg.PortalBaseURL + "/" }

// httpClient builds a client bound to the given jar (nil for jarless calls).
func (c *Client) httpClient(jar http.CookieJar) *http.Client {
	return &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.cfg.Timeout,
	}
}

// classifyStatus maps portal HTTP status codes onto the error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domerrors.ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return domerrors.ErrRateLimited
	case status >= 500:
		return fmt.Errorf("%w: portal returned HTTP %d", domerrors.ErrNetwork, status)
	default:
		return fmt.Errorf("%w: portal returned HTTP %d", domerrors.ErrMalformedResponse, status)
	}
}
