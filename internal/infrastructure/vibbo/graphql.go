package vibbo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

const organizationsQuery = `query vibboOrganizations {
  viewer {
    id
    memberships {
      name
      roles
      obosCompanyNumber
      slug: organizationSlug
      vibboEnabled
      cluster
      __typename
    }
    __typename
  }
}`

const organizationQuery = `query vibboOrganization($organizationSlug: OrganizationID!) {
  organization(id: $organizationSlug) {
    id
    name
    slug
    __typename
  }
}`

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// graphql executes one portal query with cookie auth and decodes the data
// envelope into out. The response is returned so callers can read rolling
// session cookies.
func (c *Client) graphql(ctx context.Context, token, operation, query string, variables map[string]any, out any) (*http.Response, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{
		"operationName": operation,
		"variables":     variables,
		"query":         query,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PortalBaseURL+"/graphql?name="+operation, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-version", c.cfg.APIVersion)
	req.Header.Set("apollo-require-preflight", "true")

	resp, err := c.httpClient(nil).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp, classifyStatus(resp.StatusCode)
	}

	var envelope graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return resp, fmt.Errorf("%w: %w", domerrors.ErrMalformedResponse, err)
	}
	if len(envelope.Errors) > 0 {
		return resp, classifyGraphQLError(envelope.Errors[0].Message)
	}
	if envelope.Data == nil {
		return resp, fmt.Errorf("%w: empty data in %s", domerrors.ErrMalformedResponse, operation)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return resp, fmt.Errorf("%w: %w", domerrors.ErrMalformedResponse, err)
	}
	return resp, nil
}

// classifyGraphQLError maps GraphQL-level errors: the portal reports dead
// sessions as errors in a 200 response.
func classifyGraphQLError(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "not logged in") || strings.Contains(lower, "access denied") {
		return fmt.Errorf("%w: %s", domerrors.ErrUnauthorized, msg)
	}
	return fmt.Errorf("%w: %s", domerrors.ErrMalformedResponse, msg)
}

type membershipPayload struct {
	Name              string   `json:"name"`
	Slug              string   `json:"slug"`
	ObosCompanyNumber string   `json:"obosCompanyNumber"`
	Roles             []string `json:"roles"`
	VibboEnabled      bool     `json:"vibboEnabled"`
}

type viewerPayload struct {
	Viewer *struct {
		ID          string              `json:"id"`
		Memberships []membershipPayload `json:"memberships"`
	} `json:"viewer"`
}

// DiscoverOrganizations lists the session's portal-enabled memberships.
func (c *Client) DiscoverOrganizations(ctx context.Context, token string) ([]domain.OrgRef, error) {
	var payload viewerPayload
	if _, err := c.graphql(ctx, token, "vibboOrganizations", organizationsQuery, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Viewer == nil {
		return nil, fmt.Errorf("%w: no viewer in response", domerrors.ErrMalformedResponse)
	}
	var orgs []domain.OrgRef
	for _, m := range payload.Viewer.Memberships {
		if !m.VibboEnabled {
			continue
		}
		orgs = append(orgs, domain.OrgRef{Slug: m.Slug, DisplayName: m.Name})
	}
	return orgs, nil
}

// ResolveOrganizationID returns the portal's opaque base64 id for a slug.
func (c *Client) ResolveOrganizationID(ctx context.Context, token, slug string) (string, error) {
	var payload struct {
		Organization *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Slug string `json:"slug"`
		} `json:"organization"`
	}
	if _, err := c.graphql(ctx, token, "vibboOrganization", organizationQuery, map[string]any{"organizationSlug": slug}, &payload); err != nil {
		return "", err
	}
	if payload.Organization == nil || payload.Organization.ID == "" {
		return "", fmt.Errorf("%w: no organization for slug %q", domerrors.ErrMalformedResponse, slug)
	}
	return payload.Organization.ID, nil
}

// RefreshSession revalidates the session by running the viewer query. The
// portal rolls the session cookie on use; a refreshed cookie in the
// response replaces the stored token, and the membership list rides along
// for free. A rejected session surfaces ErrUnauthorized.
func (c *Client) RefreshSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	var payload viewerPayload
	resp, err := c.graphql(ctx, session.Token, "vibboOrganizations", organizationsQuery, nil, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Viewer == nil {
		return nil, fmt.Errorf("%w: no viewer in response", domerrors.ErrMalformedResponse)
	}

	refreshed := session
	captured := map[string]*http.Cookie{}
	captureSessionCookies(captured, resp.Cookies())
	if sesid, ok := captured["sesid"]; ok {
		sig, okSig := captured["sesid.sig"]
		if okSig {
			refreshed.Token = sessionToken(sesid.Value, sig.Value)
		}
		if !sesid.Expires.IsZero() {
			refreshed.ExpiresAt = sesid.Expires
		}
	}

	var orgs []domain.OrgRef
	for _, m := range payload.Viewer.Memberships {
		if !m.VibboEnabled {
			continue
		}
		orgs = append(orgs, domain.OrgRef{Slug: m.Slug, DisplayName: m.Name})
	}
	if len(orgs) > 0 {
		refreshed.Organizations = mergeOrgIDs(orgs, session.Organizations)
	}
	return &refreshed, nil
}

// mergeOrgIDs carries previously resolved opaque ids onto re-discovered
// memberships; the viewer query does not include them.
func mergeOrgIDs(fresh, known []domain.OrgRef) []domain.OrgRef {
	byID := make(map[string]string, len(known))
	for _, o := range known {
		if o.ID != "" {
			byID[o.Slug] = o.ID
		}
	}
	for i := range fresh {
		if id, ok := byID[fresh[i].Slug]; ok {
			fresh[i].ID = id
		}
	}
	return fresh
}
