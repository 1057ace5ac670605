package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appauth "github.com/nabolaget/vibbobridge/internal/application/auth"
	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
	infraauth "github.com/nabolaget/vibbobridge/internal/infrastructure/auth"
)

type stubRefresher struct {
	snap       domain.FeedSnapshot
	refreshErr error
	refreshes  int
}

func (s *stubRefresher) Refresh(context.Context) (domain.FeedSnapshot, error) {
	s.refreshes++
	if s.refreshErr != nil {
		return domain.FeedSnapshot{}, s.refreshErr
	}
	return s.snap, nil
}

func (s *stubRefresher) Snapshot() domain.FeedSnapshot { return s.snap }

type stubStore struct {
	session *domain.Session
}

func (s *stubStore) Load(context.Context) (*domain.Session, error) {
	if s.session == nil {
		return nil, domerrors.ErrNoSession
	}
	cp := *s.session
	return &cp, nil
}

func (s *stubStore) Save(_ context.Context, session domain.Session) error {
	s.session = &session
	return nil
}

func (s *stubStore) Clear(context.Context) error {
	s.session = nil
	return nil
}

type stubGateway struct {
	requestCodeErr error
	verifySession  *domain.Session
	verifyErr      error
	orgs           []domain.OrgRef
	discoverErr    error
	resolvedID     string
	resolveErr     error
}

func (g *stubGateway) StartLogin(context.Context) (*ports.LoginChallenge, error) {
	return &ports.LoginChallenge{State: "st", CSRF: "cs", Nonce: "no"}, nil
}

func (g *stubGateway) RequestCode(context.Context, *ports.LoginChallenge, string) error {
	return g.requestCodeErr
}

func (g *stubGateway) VerifyCode(context.Context, *ports.LoginChallenge, string, string) (*domain.Session, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verifySession != nil {
		cp := *g.verifySession
		return &cp, nil
	}
	return &domain.Session{Token: "sesid=tok"}, nil
}

func (g *stubGateway) DiscoverOrganizations(context.Context, string) ([]domain.OrgRef, error) {
	if g.discoverErr != nil {
		return nil, g.discoverErr
	}
	return g.orgs, nil
}

func (g *stubGateway) ResolveOrganizationID(context.Context, string, string) (string, error) {
	if g.resolveErr != nil {
		return "", g.resolveErr
	}
	return g.resolvedID, nil
}

func (g *stubGateway) RefreshSession(_ context.Context, session domain.Session) (*domain.Session, error) {
	cp := session
	return &cp, nil
}

type fixture struct {
	handler   *AuthHandler
	store     *stubStore
	gateway   *stubGateway
	refresher *stubRefresher
	table     *appauth.ChallengeTable
}

func newFixture(t *testing.T, gw *stubGateway) *fixture {
	t.Helper()
	store := &stubStore{}
	sessions := appauth.NewManager(store, gw, time.Minute, zerolog.Nop())
	table := appauth.NewChallengeTable(time.Minute)
	requestCode := appauth.NewRequestCode(gw, table, nil, "+47")
	verifyCode := appauth.NewVerifyCode(gw, table, sessions, nil)
	refresher := &stubRefresher{}
	issuer := infraauth.NewTokenIssuer("topsecret", "vibbobridge", 60)
	return &fixture{
		handler:   NewAuthHandler(requestCode, verifyCode, sessions, gw, refresher, issuer, "topsecret", zerolog.Nop()),
		store:     store,
		gateway:   gw,
		refresher: refresher,
		table:     table,
	}
}

func doJSON(t *testing.T, fn http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fn(rec, req)
	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestLoginStart(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	rec, body := doJSON(t, f.handler.LoginStart, http.MethodPost, "/auth/login/start", `{"phone_number":"91234567"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["challenge_id"])
}

func TestLoginStartInvalidPhone(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	rec, body := doJSON(t, f.handler.LoginStart, http.MethodPost, "/auth/login/start", `{"phone_number":"not a number"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidPhone, body["code"])
}

func TestLoginStartRateLimited(t *testing.T) {
	f := newFixture(t, &stubGateway{requestCodeErr: domerrors.ErrRateLimited})
	rec, body := doJSON(t, f.handler.LoginStart, http.MethodPost, "/auth/login/start", `{"phone_number":"91234567"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ErrCodeRateLimited, body["code"])
}

func TestLoginVerifyFlow(t *testing.T) {
	gw := &stubGateway{orgs: []domain.OrgRef{{Slug: "blokka", DisplayName: "Blokka Borettslag"}}}
	f := newFixture(t, gw)

	_, startBody := doJSON(t, f.handler.LoginStart, http.MethodPost, "/auth/login/start", `{"phone_number":"91234567"}`)
	challengeID, _ := startBody["challenge_id"].(string)
	require.NotEmpty(t, challengeID)

	rec, body := doJSON(t, f.handler.LoginVerify, http.MethodPost, "/auth/login/verify",
		`{"challenge_id":"`+challengeID+`","code":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["discovery_failed"])
	orgs, ok := body["organizations"].([]any)
	require.True(t, ok)
	require.Len(t, orgs, 1)

	// The session is persisted.
	require.NotNil(t, f.store.session)
	assert.Equal(t, "sesid=tok", f.store.session.Token)
}

func TestLoginVerifyDiscoveryFailure(t *testing.T) {
	gw := &stubGateway{discoverErr: domerrors.ErrNetwork}
	f := newFixture(t, gw)

	_, startBody := doJSON(t, f.handler.LoginStart, http.MethodPost, "/auth/login/start", `{"phone_number":"91234567"}`)
	challengeID, _ := startBody["challenge_id"].(string)

	rec, body := doJSON(t, f.handler.LoginVerify, http.MethodPost, "/auth/login/verify",
		`{"challenge_id":"`+challengeID+`","code":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code, "login succeeds even when discovery fails")
	assert.Equal(t, true, body["discovery_failed"])
	require.NotNil(t, f.store.session)
}

func TestLoginVerifyUnknownChallenge(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	rec, body := doJSON(t, f.handler.LoginVerify, http.MethodPost, "/auth/login/verify",
		`{"challenge_id":"`+uuid.NewString()+`","code":"123456"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeChallengeExpired, body["code"])
}

func TestLoginVerifyWrongCode(t *testing.T) {
	gw := &stubGateway{verifyErr: domerrors.ErrInvalidCode}
	f := newFixture(t, gw)

	_, startBody := doJSON(t, f.handler.LoginStart, http.MethodPost, "/auth/login/start", `{"phone_number":"91234567"}`)
	challengeID, _ := startBody["challenge_id"].(string)

	rec, body := doJSON(t, f.handler.LoginVerify, http.MethodPost, "/auth/login/verify",
		`{"challenge_id":"`+challengeID+`","code":"000000"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidCode, body["code"])
}

func TestOrganizationsNeedsLogin(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req := httptest.NewRequest(http.MethodGet, "/auth/organizations", nil)
	rec := httptest.NewRecorder()
	f.handler.Organizations(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActivateOrgResolvesID(t *testing.T) {
	gw := &stubGateway{resolvedID: "T3JnOjEyMw=="}
	f := newFixture(t, gw)
	f.store.session = &domain.Session{
		Token:         "sesid=tok",
		Organizations: []domain.OrgRef{{Slug: "blokka", DisplayName: "Blokka Borettslag"}},
	}

	req := httptest.NewRequest(http.MethodPost, "/orgs/blokka/activate", nil)
	rec := httptest.NewRecorder()
	f.handler.ActivateOrg(rec, req, "blokka")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T3JnOjEyMw==", f.store.session.ActiveOrg.ID)
	assert.Equal(t, "blokka", f.store.session.ActiveOrg.Slug)
	assert.Equal(t, 1, f.refresher.refreshes, "activation fills the first snapshot")
}

func TestActivateOrgRetriesDiscovery(t *testing.T) {
	gw := &stubGateway{
		orgs:       []domain.OrgRef{{Slug: "blokka", DisplayName: "Blokka Borettslag"}},
		resolvedID: "T3JnOjEyMw==",
	}
	f := newFixture(t, gw)
	// Discovery failed during login: empty membership list.
	f.store.session = &domain.Session{Token: "sesid=tok"}

	req := httptest.NewRequest(http.MethodPost, "/orgs/blokka/activate", nil)
	rec := httptest.NewRecorder()
	f.handler.ActivateOrg(rec, req, "blokka")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.store.session.Organizations, 1)
	assert.Equal(t, "blokka", f.store.session.ActiveOrg.Slug)
}

func TestActivateOrgUnknownSlug(t *testing.T) {
	f := newFixture(t, &stubGateway{orgs: []domain.OrgRef{{Slug: "blokka"}}})
	f.store.session = &domain.Session{
		Token:         "sesid=tok",
		Organizations: []domain.OrgRef{{Slug: "blokka"}},
	}

	req := httptest.NewRequest(http.MethodPost, "/orgs/finnes-ikke/activate", nil)
	rec := httptest.NewRecorder()
	f.handler.ActivateOrg(rec, req, "finnes-ikke")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenExchange(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	rec, body := doJSON(t, f.handler.Token, http.MethodPost, "/auth/token", `{"secret":"topsecret","client":"homeassistant"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, float64(60), body["expires_in"])
}

func TestTokenWrongSecret(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	rec, _ := doJSON(t, f.handler.Token, http.MethodPost, "/auth/token", `{"secret":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenDisabled(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	f.handler.issuer = nil
	f.handler.apiSecret = ""
	rec, _ := doJSON(t, f.handler.Token, http.MethodPost, "/auth/token", `{"secret":"topsecret"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	f.store.session = &domain.Session{Token: "sesid=tok"}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	f.handler.Logout(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.store.session)
}
