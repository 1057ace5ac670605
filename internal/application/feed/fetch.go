package feed

import (
	"context"
	"errors"
	"fmt"

	appauth "github.com/nabolaget/vibbobridge/internal/application/auth"
	"github.com/nabolaget/vibbobridge/internal/application/ports"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// DefaultFeedLimit matches the portal web client's page size.
const DefaultFeedLimit = 10

// Fetcher issues the organization-scoped feed query through an authorized
// session. Network-class errors are retried with bounded backoff within the
// cycle; an Unauthorized response triggers exactly one re-authorization and
// one retry before being surfaced.
type Fetcher struct {
	gateway  ports.FeedGateway
	sessions *appauth.Manager
	retry    RetryPolicy
	limit    int
}

func NewFetcher(gateway ports.FeedGateway, sessions *appauth.Manager, retry RetryPolicy, limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Fetcher{
		gateway:  gateway,
		sessions: sessions,
		retry:    retry,
		limit:    limit,
	}
}

// Fetch returns the raw feed payload and the auth context that produced it.
func (f *Fetcher) Fetch(ctx context.Context) (*ports.RawFeed, appauth.AuthContext, error) {
	actx, err := f.sessions.AuthorizedContext(ctx)
	if err != nil {
		return nil, appauth.AuthContext{}, err
	}
	if actx.OrgID == "" {
		return nil, actx, fmt.Errorf("%w: no active organization selected", domerrors.ErrNoSession)
	}

	raw, err := f.fetchWithRetry(ctx, actx)
	if err == nil {
		return raw, actx, nil
	}
	if !errors.Is(err, domerrors.ErrUnauthorized) {
		return nil, actx, err
	}

	// One re-authorization, one retry. A second Unauthorized is surfaced
	// as-is; looping here would hammer the portal with a dead token.
	actx, rerr := f.sessions.Reauthorize(ctx)
	if rerr != nil {
		return nil, appauth.AuthContext{}, rerr
	}
	raw, err = f.fetchWithRetry(ctx, actx)
	if err != nil {
		return nil, actx, err
	}
	return raw, actx, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, actx appauth.AuthContext) (*ports.RawFeed, error) {
	var raw *ports.RawFeed
	err := f.retry.Do(ctx, func(ctx context.Context) error {
		var ferr error
		raw, ferr = f.gateway.FetchActivity(ctx, actx.Token, actx.OrgID, f.limit)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}
