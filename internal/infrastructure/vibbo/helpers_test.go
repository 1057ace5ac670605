package vibbo

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
)

func newTestChallenge(t *testing.T) *ports.LoginChallenge {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &ports.LoginChallenge{
		State:    "st-1",
		CSRF:     "cs-1",
		Nonce:    "no-1",
		LoginURL: "https://idp.example/login",
		Jar:      jar,
	}
}

func jsonDecode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}
