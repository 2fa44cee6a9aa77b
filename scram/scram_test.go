package scram

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Seed scenario 6: the RFC 5802 §5 worked example, driven through the
// Client state machine end to end.
func TestRFC5802Vector(t *testing.T) {
	c, err := New("user", "pencil", "fyko+d2lbbFgONRv9qkxdawL", 0)
	require.NoError(t, err)

	first, err := c.Step1()
	require.NoError(t, err)
	decoded, _ := base64.StdEncoding.DecodeString(first)
	assert.Equal(t, "n=user,r=fyko+d2lbbFgONRv9qkxdawL", string(decoded))

	serverFirst := "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096"
	challengeB64 := base64.StdEncoding.EncodeToString([]byte(serverFirst))

	final, err := c.Step2(challengeB64)
	require.NoError(t, err)
	decodedFinal, _ := base64.StdEncoding.DecodeString(final)
	assert.True(t, strings.HasPrefix(string(decodedFinal), "c=biws,r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,p="))

	proofB64 := strings.TrimPrefix(string(decodedFinal), "c=biws,r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,p=")
	assert.Equal(t, "v0X8v3Bz2T0CJGbJQyF0X+HI4Ts=", proofB64)

	serverFinal := "v=rmF9pqV8S7suAoZWja4dJRkFsKQ="
	err = c.Step3(base64.StdEncoding.EncodeToString([]byte(serverFinal)))
	require.NoError(t, err)
	assert.Equal(t, Step3, c.Step())
}

func TestStep2RejectsNonMatchingNonce(t *testing.T) {
	c, err := New("user", "pencil", "fyko+d2lbbFgONRv9qkxdawL", 0)
	require.NoError(t, err)
	_, err = c.Step1()
	require.NoError(t, err)

	bogus := base64.StdEncoding.EncodeToString([]byte("r=totally-different,s=QSXCR+Q6sek8bf92,i=4096"))
	_, err = c.Step2(bogus)
	assert.Error(t, err)
	assert.Equal(t, StepAborted, c.Step())
}

func TestStep3RejectsBadServerSignature(t *testing.T) {
	c, err := New("user", "pencil", "fyko+d2lbbFgONRv9qkxdawL", 0)
	require.NoError(t, err)
	_, err = c.Step1()
	require.NoError(t, err)

	serverFirst := "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096"
	_, err = c.Step2(base64.StdEncoding.EncodeToString([]byte(serverFirst)))
	require.NoError(t, err)

	bad := base64.StdEncoding.EncodeToString([]byte("v=AAAAAAAAAAAAAAAAAAAAAAAAAAA="))
	err = c.Step3(bad)
	assert.Error(t, err)
	assert.Equal(t, StepAborted, c.Step())
}

func TestStep2FallsBackToMinIterationsWhenServerOmitsI(t *testing.T) {
	c, err := New("user", "pencil", "fyko+d2lbbFgONRv9qkxdawL", 4096)
	require.NoError(t, err)
	_, err = c.Step1()
	require.NoError(t, err)

	serverFirst := "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92"
	_, err = c.Step2(base64.StdEncoding.EncodeToString([]byte(serverFirst)))
	require.NoError(t, err)
	assert.Equal(t, Step3, c.Step())
}

func TestStep2AbortsWhenIMissingAndNoFallbackConfigured(t *testing.T) {
	c, err := New("user", "pencil", "fyko+d2lbbFgONRv9qkxdawL", 0)
	require.NoError(t, err)
	_, err = c.Step1()
	require.NoError(t, err)

	serverFirst := "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92"
	_, err = c.Step2(base64.StdEncoding.EncodeToString([]byte(serverFirst)))
	assert.Error(t, err)
	assert.Equal(t, StepAborted, c.Step())
}

func TestPreferOverChoosesScramFirst(t *testing.T) {
	assert.Equal(t, "SCRAM-SHA-1", PreferOver([]string{"PLAIN", "SCRAM-SHA-1", "DIGEST-MD5"}))
	assert.Equal(t, "DIGEST-MD5", PreferOver([]string{"PLAIN", "DIGEST-MD5"}))
	assert.Equal(t, "PLAIN", PreferOver([]string{"PLAIN"}))
	assert.Equal(t, "", PreferOver(nil))
}

func TestHiMatchesKnownVector(t *testing.T) {
	salt, _ := base64.StdEncoding.DecodeString("QSXCR+Q6sek8bf92")
	saltedPassword := Hi([]byte("pencil"), salt, 4096)
	assert.Equal(t, 20, len(saltedPassword))
	// RFC 5802 SaltedPassword for "pencil", this salt and i=4096.
	assert.Equal(t, "HZbuOlKbWl+eR8AfIposuKbhX30=", base64.StdEncoding.EncodeToString(saltedPassword))
}
