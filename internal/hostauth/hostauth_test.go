package hostauth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Hour)

	token, err := issuer.Issue("poll_1")
	require.NoError(t, err)

	assert.NoError(t, issuer.Verify(token, "poll_1"))
	assert.ErrorIs(t, issuer.Verify(token, "poll_2"), ErrInvalidToken)
	assert.ErrorIs(t, issuer.Verify("", "poll_1"), ErrMissingToken)
	assert.ErrorIs(t, issuer.Verify("garbage", "poll_1"), ErrInvalidToken)

	other := NewIssuer([]byte("other-secret"), time.Hour)
	assert.ErrorIs(t, other.Verify(token, "poll_1"), ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, err := issuer.Issue("poll_1")
	require.NoError(t, err)

	issuer.now = time.Now
	assert.ErrorIs(t, issuer.Verify(token, "poll_1"), ErrInvalidToken)
}

func TestVerify_WrongType(t *testing.T) {
	secret := []byte("test-secret")
	claims := &HostClaims{
		PollID:    "poll_1",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	assert.ErrorIs(t, NewIssuer(secret, time.Hour).Verify(token, "poll_1"), ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		err    error
	}{
		{header: "", err: ErrMissingToken},
		{header: "Bearer abc.def", want: "abc.def"},
		{header: "bearer   abc.def ", want: "abc.def"},
		{header: "Basic abc", err: ErrInvalidToken},
		{header: "Bearer", err: ErrInvalidToken},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/polls/p/reveal", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, err := BearerToken(req)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.want, got)
	}
}
