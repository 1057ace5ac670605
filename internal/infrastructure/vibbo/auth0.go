package vibbo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// The login page embeds the CSRF token in a handful of shapes depending on
// which Auth0 lock version is served; try them in order.
var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"_csrf"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`),
	regexp.MustCompile(`"_csrf","([^"]+)"`),
	regexp.MustCompile(`_csrf['"]?\s*[:=]\s*['"]([^'"]+)`),
}

// StartLogin navigates portal /auth/login through the identity provider's
// authorize redirect and scrapes the _csrf, state and nonce the SMS form
// needs. The challenge keeps the cookie jar; the rest of the handshake must
// reuse it.
func (c *Client) StartLogin(ctx context.Context) (*ports.LoginChallenge, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := c.httpClient(jar)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.PortalBaseURL+"/auth/login", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrNetwork, err)
	}

	html := string(body)
	finalURL := resp.Request.URL

	csrf := extractCSRF(html)
	if csrf == "" {
		return nil, fmt.Errorf("%w: no _csrf token in login page", domerrors.ErrMalformedResponse)
	}
	state := queryOrEmbedded(finalURL, html, "state")
	if state == "" {
		return nil, fmt.Errorf("%w: no state in login page", domerrors.ErrMalformedResponse)
	}
	nonce := queryOrEmbedded(finalURL, html, "nonce")
	if nonce == "" {
		return nil, fmt.Errorf("%w: no nonce in login page", domerrors.ErrMalformedResponse)
	}

	return &ports.LoginChallenge{
		State:    state,
		CSRF:     csrf,
		Nonce:    nonce,
		LoginURL: finalURL.String(),
		Jar:      jar,
	}, nil
}

// RequestCode asks the identity provider to send the SMS one-time code.
func (c *Client) RequestCode(ctx context.Context, ch *ports.LoginChallenge, phoneNumber string) error {
	payload := map[string]any{
		"client_id":    c.cfg.ClientID,
		"connection":   "sms",
		"send":         "code",
		"phone_number": phoneNumber,
		"authParams": map[string]any{
			"response_type": "code",
			"redirect_uri":  c.redirectURI(),
			"scope":         scope,
			"audience":      c.audience(),
			"_csrf":         ch.CSRF,
			"state":         ch.State,
			"_intstate":     "deprecated",
			"nonce":         ch.Nonce,
		},
	}
	resp, err := c.postJSON(ctx, ch, c.cfg.AuthBaseURL+"/passwordless/start", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return domerrors.ErrRateLimited
		}
		if resp.StatusCode == http.StatusBadRequest {
			// The provider rejects numbers it cannot deliver to.
			return fmt.Errorf("%w: provider rejected number", domerrors.ErrInvalidPhone)
		}
		return classifyStatus(resp.StatusCode)
	}
	c.log.Debug().Msg("sms code requested")
	return nil
}

// VerifyCode exchanges the SMS code for portal session cookies by posting
// the verification and following the provider's redirect chain back to the
// portal callback, which sets the sesid cookies.
func (c *Client) VerifyCode(ctx context.Context, ch *ports.LoginChallenge, phoneNumber, code string) (*domain.Session, error) {
	resp, err := c.postJSON(ctx, ch, c.cfg.AuthBaseURL+"/passwordless/verify", map[string]any{
		"connection":        "sms",
		"verification_code": code,
		"phone_number":      phoneNumber,
		"client_id":         c.cfg.ClientID,
	})
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, domerrors.ErrRateLimited
		case bytes.Contains(bytes.ToLower(body), []byte("expired")):
			return nil, domerrors.ErrCodeExpired
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: HTTP %d from verify", domerrors.ErrNetwork, resp.StatusCode)
		default:
			return nil, fmt.Errorf("%w: HTTP %d", domerrors.ErrInvalidCode, resp.StatusCode)
		}
	}

	// Follow verify_redirect -> /login/callback -> /authorize/resume ->
	// portal /auth/callback. The session cookies are set mid-chain, so they
	// are captured from each redirect response rather than the jar (the jar
	// does not expose cookie expiry).
	captured := map[string]*http.Cookie{}
	client := c.httpClient(ch.Jar)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if prev := req.Response; prev != nil {
			captureSessionCookies(captured, prev.Cookies())
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}

	q := url.Values{
		"client_id":         {c.cfg.ClientID},
		"response_type":     {"code"},
		"redirect_uri":      {c.redirectURI()},
		"scope":             {scope},
		"audience":          {c.audience()},
		"_csrf":             {ch.CSRF},
		"state":             {ch.State},
		"_intstate":         {"deprecated"},
		"protocol":          {"oauth2"},
		"nonce":             {ch.Nonce},
		"connection":        {"sms"},
		"phone_number":      {phoneNumber},
		"verification_code": {code},
		"auth0Client":       {auth0ClientHeader},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AuthBaseURL+"/passwordless/verify_redirect?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", ch.LoginURL)
	req.Header.Set("User-Agent", userAgent)

	final, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrNetwork, err)
	}
	captureSessionCookies(captured, final.Cookies())
	final.Body.Close()
	c.log.Debug().Str("url", final.Request.URL.String()).Msg("verify redirect chain complete")

	sesid, okID := captured["sesid"]
	sig, okSig := captured["sesid.sig"]
	if !okID || !okSig {
		return nil, fmt.Errorf("%w: no portal session cookies after login", domerrors.ErrInvalidCode)
	}

	session := &domain.Session{
		Token: sessionToken(sesid.Value, sig.Value),
	}
	if !sesid.Expires.IsZero() {
		session.ExpiresAt = sesid.Expires
	}
	return session, nil
}

func (c *Client) postJSON(ctx context.Context, ch *ports.LoginChallenge, rawURL string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth0-Client", auth0ClientHeader)
	req.Header.Set("Origin", c.cfg.AuthBaseURL)
	req.Header.Set("Referer", ch.LoginURL)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient(ch.Jar).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrNetwork, err)
	}
	return resp, nil
}

func captureSessionCookies(dst map[string]*http.Cookie, cookies []*http.Cookie) {
	for _, ck := range cookies {
		if ck.Name == "sesid" || ck.Name == "sesid.sig" {
			dst[ck.Name] = ck
		}
	}
}

func sessionToken(sesid, sig string) string {
	return "sesid=" + sesid + "; sesid.sig=" + sig
}

func extractCSRF(html string) string {
	for _, re := range csrfPatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	return ""
}

// queryOrEmbedded pulls key from the final URL's query string, falling back
// to a `"key":"value"` literal in the page body.
func queryOrEmbedded(u *url.URL, html, key string) string {
	if u != nil {
		if v := u.Query().Get(key); v != "" {
			return v
		}
	}
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"([^"]+)"`)
	if m := re.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}
