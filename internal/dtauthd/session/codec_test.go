package session

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T, ttl time.Duration) *Codec {
	t.Helper()
	codec, err := NewCodec(testKey, ttl, "devtrack-auth-test")
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsShortKey(t *testing.T) {
	_, err := NewCodec([]byte("too-short"), time.Hour, "test")
	assert.Error(t, err)
}

func TestNewCodecRejectsNonPositiveTTL(t *testing.T) {
	_, err := NewCodec(testKey, 0, "test")
	assert.Error(t, err)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	id := uuid.New()
	token, err := codec.Issue(id, "dev@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := codec.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, principal.ID)
	assert.Equal(t, "dev@example.com", principal.Email)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, err := codec.Issue(uuid.New(), "dev@example.com")
	require.NoError(t, err)

	// Move the codec's clock past the token's expiry
	codec.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = codec.Validate(token)
	require.Error(t, err)
	assert.True(t, werrors.IsTokenInvalid(err))
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, err := codec.Issue(uuid.New(), "dev@example.com")
	require.NoError(t, err)

	// Flip a byte in the payload segment
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = codec.Validate(tampered)
	require.Error(t, err)
	assert.True(t, werrors.IsTokenInvalid(err))
}

func TestValidateRejectsForeignKey(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"), time.Hour, "devtrack-auth-test")
	require.NoError(t, err)

	token, err := other.Issue(uuid.New(), "dev@example.com")
	require.NoError(t, err)

	_, err = codec.Validate(token)
	require.Error(t, err)
	assert.True(t, werrors.IsTokenInvalid(err))
}

func TestValidateRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Validate(input)
		assert.Error(t, err, "input %q", input)
		assert.True(t, werrors.IsTokenInvalid(err), "input %q", input)
	}
}
