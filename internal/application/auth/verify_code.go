package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

type VerifyCodeInput struct {
	ChallengeID string
	Code        string
}

type VerifyCodeResult struct {
	Session *domain.Session
	// DiscoveryFailed is set when the login itself succeeded but the
	// follow-up organization discovery did not. The session is committed
	// with an empty organization list; discovery can be retried later.
	DiscoveryFailed bool
}

// VerifyCode redeems a challenge id and SMS code for a durable session,
// discovers the user's organizations with the new token, and commits the
// session through the session manager.
type VerifyCode struct {
	gateway    ports.AuthGateway
	challenges *ChallengeTable
	sessions   *Manager
	throttle   ports.RequestThrottle
}

func NewVerifyCode(gateway ports.AuthGateway, challenges *ChallengeTable, sessions *Manager, throttle ports.RequestThrottle) *VerifyCode {
	return &VerifyCode{
		gateway:    gateway,
		challenges: challenges,
		sessions:   sessions,
		throttle:   throttle,
	}
}

func (uc *VerifyCode) Execute(ctx context.Context, input VerifyCodeInput) (*VerifyCodeResult, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, domerrors.ErrInvalidCode
	}
	ch, phone, ok := uc.challenges.Take(input.ChallengeID)
	if !ok {
		return nil, domerrors.ErrChallengeNotFound
	}
	session, err := uc.gateway.VerifyCode(ctx, ch, phone, code)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}

	result := &VerifyCodeResult{Session: session}
	orgs, err := uc.gateway.DiscoverOrganizations(ctx, session.Token)
	if err != nil {
		// Login already succeeded; an empty organization list is recoverable.
		result.DiscoveryFailed = true
	} else {
		session.Organizations = orgs
	}

	if err := uc.sessions.Commit(ctx, *session); err != nil {
		return nil, err
	}
	if uc.throttle != nil {
		uc.throttle.Clear(ctx, phone)
	}
	return result, nil
}
