package auth

import (
	"context"
	"fmt"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

type RequestCodeInput struct {
	PhoneNumber string
}

type RequestCodeResult struct {
	ChallengeID string
	PhoneNumber string
}

// RequestCode starts a login attempt: validates the phone number locally,
// loads the portal's login page for challenge state, and asks for an SMS
// code. The returned challenge id is redeemed by VerifyCode.
type RequestCode struct {
	gateway       ports.AuthGateway
	challenges    *ChallengeTable
	throttle      ports.RequestThrottle
	defaultPrefix string
}

func NewRequestCode(gateway ports.AuthGateway, challenges *ChallengeTable, throttle ports.RequestThrottle, defaultPrefix string) *RequestCode {
	return &RequestCode{
		gateway:       gateway,
		challenges:    challenges,
		throttle:      throttle,
		defaultPrefix: defaultPrefix,
	}
}

func (uc *RequestCode) Execute(ctx context.Context, input RequestCodeInput) (*RequestCodeResult, error) {
	phone, err := NormalizePhone(input.PhoneNumber, uc.defaultPrefix)
	if err != nil {
		return nil, err
	}
	if uc.throttle != nil {
		if throttled, retryAfter := uc.throttle.IsThrottled(ctx, phone); throttled {
			return nil, fmt.Errorf("%w: retry in %ds", domerrors.ErrRateLimited, retryAfter)
		}
	}
	ch, err := uc.gateway.StartLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("start login: %w", err)
	}
	if err := uc.gateway.RequestCode(ctx, ch, phone); err != nil {
		return nil, fmt.Errorf("request code: %w", err)
	}
	if uc.throttle != nil {
		uc.throttle.Record(ctx, phone)
	}
	id := uc.challenges.Put(ch, phone)
	return &RequestCodeResult{ChallengeID: id, PhoneNumber: phone}, nil
}
