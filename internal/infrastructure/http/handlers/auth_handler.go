package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	appauth "github.com/nabolaget/vibbobridge/internal/application/auth"
	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	infraauth "github.com/nabolaget/vibbobridge/internal/infrastructure/auth"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/http/middleware"
)

// FeedRefresher is the poll scheduler surface the handlers need.
type FeedRefresher interface {
	Refresh(ctx context.Context) (domain.FeedSnapshot, error)
	Snapshot() domain.FeedSnapshot
}

type AuthHandler struct {
	requestCode *appauth.RequestCode
	verifyCode  *appauth.VerifyCode
	sessions    *appauth.Manager
	gateway     ports.AuthGateway
	refresher   FeedRefresher
	issuer      *infraauth.TokenIssuer
	apiSecret   string
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewAuthHandler(requestCode *appauth.RequestCode, verifyCode *appauth.VerifyCode, sessions *appauth.Manager, gateway ports.AuthGateway, refresher FeedRefresher, issuer *infraauth.TokenIssuer, apiSecret string, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		requestCode: requestCode,
		verifyCode:  verifyCode,
		sessions:    sessions,
		gateway:     gateway,
		refresher:   refresher,
		issuer:      issuer,
		apiSecret:   apiSecret,
		validate:    validator.New(),
		log:         log,
	}
}

// LoginStart handles POST /auth/login/start.
func (h *AuthHandler) LoginStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber string `json:"phone_number" validate:"required,max=20"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	result, err := h.requestCode.Execute(r.Context(), appauth.RequestCodeInput{PhoneNumber: body.PhoneNumber})
	if err != nil {
		AuditLog(h.log, r, "login.start", body.PhoneNumber, false, err.Error())
		middleware.RecordAuthAttempt("start", false)
		writeDomainErr(w, err)
		return
	}
	AuditLog(h.log, r, "login.start", result.PhoneNumber, true, "")
	middleware.RecordAuthAttempt("start", true)
	writeJSON(w, http.StatusOK, map[string]string{
		"challenge_id": result.ChallengeID,
	})
}

// LoginVerify handles POST /auth/login/verify.
func (h *AuthHandler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChallengeID string `json:"challenge_id" validate:"required,uuid4"`
		Code        string `json:"code" validate:"required,min=4,max=10"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", err.Error())
		return
	}
	result, err := h.verifyCode.Execute(r.Context(), appauth.VerifyCodeInput{
		ChallengeID: body.ChallengeID,
		Code:        body.Code,
	})
	if err != nil {
		AuditLog(h.log, r, "login.verify", "", false, err.Error())
		middleware.RecordAuthAttempt("verify", false)
		writeDomainErr(w, err)
		return
	}
	if result.DiscoveryFailed {
		h.log.Warn().Msg("organization discovery failed after login; retry via activation")
	}
	AuditLog(h.log, r, "login.verify", "", true, "")
	middleware.RecordAuthAttempt("verify", true)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organizations":    orgsPayload(result.Session.Organizations),
		"discovery_failed": result.DiscoveryFailed,
	})
}

// Organizations handles GET /auth/organizations.
func (h *AuthHandler) Organizations(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organizations": orgsPayload(session.Organizations),
		"active":        orgPayload(session.ActiveOrg),
	})
}

// ActivateOrg handles POST /orgs/{slug}/activate: selects the organization
// to poll, resolving its opaque portal id. If discovery failed during
// login, it is retried here first.
func (h *AuthHandler) ActivateOrg(w http.ResponseWriter, r *http.Request, slug string) {
	ctx := r.Context()
	session, err := h.sessions.Current(ctx)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	org, ok := session.OrgBySlug(slug)
	if !ok && len(session.Organizations) == 0 {
		orgs, derr := h.gateway.DiscoverOrganizations(ctx, session.Token)
		if derr != nil {
			writeDomainErr(w, derr)
			return
		}
		session.Organizations = orgs
		if err := h.sessions.Commit(ctx, session); err != nil {
			writeDomainErr(w, err)
			return
		}
		org, ok = session.OrgBySlug(slug)
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "", "no membership with slug "+slug)
		return
	}

	if org.ID == "" {
		id, rerr := h.gateway.ResolveOrganizationID(ctx, session.Token, slug)
		if rerr != nil {
			writeDomainErr(w, rerr)
			return
		}
		org.ID = id
	}
	if err := h.sessions.SetActiveOrg(ctx, org); err != nil {
		writeDomainErr(w, err)
		return
	}
	h.log.Info().Str("org", org.Slug).Msg("organization activated")

	// Fill the first snapshot right away.
	if snap, rerr := h.refresher.Refresh(ctx); rerr == nil && snap.LastError != nil {
		h.log.Warn().Err(snap.LastError).Msg("initial poll after activation failed")
	}
	writeJSON(w, http.StatusOK, orgPayload(org))
}

// Token handles POST /auth/token: exchanges the shared API secret for a
// short-lived bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil || h.apiSecret == "" {
		writeErr(w, http.StatusNotFound, "", "api auth disabled")
		return
	}
	var body struct {
		Secret string `json:"secret" validate:"required"`
		Client string `json:"client"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "", "invalid body")
		return
	}
	if subtle.ConstantTimeCompare([]byte(body.Secret), []byte(h.apiSecret)) != 1 {
		writeErr(w, http.StatusUnauthorized, "", "invalid secret")
		return
	}
	client := body.Client
	if client == "" {
		client = "host"
	}
	token, expiresIn, err := h.issuer.Issue(client)
	if err != nil {
		h.log.Error().Err(err).Msg("issue api token")
		writeErr(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"expires_in":   expiresIn,
	})
}

// Logout handles POST /auth/logout: discards the stored session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context()); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func orgPayload(o domain.OrgRef) map[string]string {
	return map[string]string{
		"id":   o.ID,
		"slug": o.Slug,
		"name": o.DisplayName,
	}
}

func orgsPayload(orgs []domain.OrgRef) []map[string]string {
	out := make([]map[string]string, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, orgPayload(o))
	}
	return out
}
