package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
)

// DefaultChallengeTTL bounds how long a pending login attempt stays valid.
// The portal's own code expiry is shorter; this only caps table growth.
const DefaultChallengeTTL = 10 * time.Minute

type pendingLogin struct {
	challenge   *ports.LoginChallenge
	phoneNumber string
	createdAt   time.Time
}

// ChallengeTable holds in-flight login attempts keyed by challenge id.
// In-memory only: a restart while a code is pending forces the user to
// start the flow over.
type ChallengeTable struct {
	mu   sync.Mutex
	data map[string]pendingLogin
	ttl  time.Duration
	now  func() time.Time
}

func NewChallengeTable(ttl time.Duration) *ChallengeTable {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeTable{
		data: make(map[string]pendingLogin),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores a pending attempt and returns its challenge id.
func (t *ChallengeTable) Put(ch *ports.LoginChallenge, phoneNumber string) string {
	id := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictExpired()
	t.data[id] = pendingLogin{challenge: ch, phoneNumber: phoneNumber, createdAt: t.now()}
	return id
}

// Take removes and returns the attempt for id. Expired or unknown ids
// return false.
func (t *ChallengeTable) Take(id string) (*ports.LoginChallenge, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.data[id]
	if !ok {
		return nil, "", false
	}
	delete(t.data, id)
	if t.now().Sub(p.createdAt) > t.ttl {
		return nil, "", false
	}
	return p.challenge, p.phoneNumber, true
}

func (t *ChallengeTable) evictExpired() {
	cutoff := t.now().Add(-t.ttl)
	for id, p := range t.data {
		if p.createdAt.Before(cutoff) {
			delete(t.data, id)
		}
	}
}
