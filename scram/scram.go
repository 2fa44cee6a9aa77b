// Package scram implements the client side of SCRAM-SHA-1 SASL, ported
// from libpurple's auth_scram.c for the message shapes, and built on
// xdg-go/pbkdf2 and xdg-go/stringprep for the PBKDF2 and SASLprep
// primitives.
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/chatcore/corerun/corerrs"
	"github.com/xdg-go/pbkdf2"
	"github.com/xdg-go/stringprep"
)

// Step is the mechanism's current position in the handshake.
type Step int

const (
	Step1 Step = 1
	Step2 Step = 2
	Step3 Step = 3
	// StepAborted marks a fatal failure; the mechanism must not be
	// driven further.
	StepAborted Step = -1
)

// MechanismName is the SASL mechanism name this package implements.
// Channel-binding ("-PLUS") variants are not implemented: PreferOver
// never selects one, and picks SCRAM-SHA-1 only when the plain form is
// itself offered.
const MechanismName = "SCRAM-SHA-1"

// PreferOver returns the mechanism to use from the set a server
// advertised: SCRAM-SHA-1 if offered, else DIGEST-MD5, else PLAIN, else
// "". Any "-PLUS" channel-binding variant is ignored in favour of the
// plain form (auth_scram.c's mechanism-selection behavior).
func PreferOver(offered []string) string {
	for _, m := range offered {
		if m == MechanismName {
			return MechanismName
		}
	}
	// "SCRAM-SHA-1-PLUS" may be present here but channel binding is
	// unimplemented, so it is deliberately never selected.
	for _, m := range offered {
		if m == "DIGEST-MD5" {
			return "DIGEST-MD5"
		}
	}
	for _, m := range offered {
		if m == "PLAIN" {
			return "PLAIN"
		}
	}
	return ""
}

// Client drives one SCRAM-SHA-1 handshake.
type Client struct {
	step Step

	username      string
	password      string
	cnonce        string
	minIterations int

	clientFirstBare string // "n=...,r=..." (no gs2 header), kept for AuthMessage
	serverChallenge string
	serverNonce     string

	storedKey      []byte
	clientKey      []byte
	serverKey      []byte
	serverSigWant  []byte
}

// New begins a handshake for username/password. cnonceOverride, if
// non-empty, is used verbatim instead of generating a fresh random
// nonce — tests use this to reproduce RFC 5802's vectors. minIterations
// is used as the PBKDF2 iteration count only if the server's challenge
// omits "i" entirely (config.SCRAMDefaults.MinIterations); pass 0 to
// treat a missing "i" as fatal instead.
func New(username, password, cnonceOverride string, minIterations int) (*Client, error) {
	cnonce := cnonceOverride
	if cnonce == "" {
		n, err := randomCnonce()
		if err != nil {
			return nil, corerrs.Network(err, "generating SCRAM cnonce")
		}
		cnonce = n
	}
	return &Client{step: Step1, username: username, password: password, cnonce: cnonce, minIterations: minIterations}, nil
}

func randomCnonce() (string, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	var buf [8]byte
	n.FillBytes(buf[:])
	return base64.StdEncoding.EncodeToString(buf[:]), nil
}

// saslPrepEscape escapes ',' and '=' ("=2C"/"=3D"),
// applied to the (SASLprep-normalized) username.
func saslPrepEscape(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	s = strings.ReplaceAll(s, ",", "=2C")
	return s
}

// Step1 returns the base64-wrapped SASL initial response:
// "n=<user>,r=<cnonce>".
func (c *Client) Step1() (string, error) {
	if c.step != Step1 {
		return "", corerrs.InvalidChallenge("scram: Step1 called out of order")
	}
	prepped, err := stringprep.SASLprep.Prepare(c.username)
	if err != nil {
		prepped = c.username
	}
	bare := fmt.Sprintf("n=%s,r=%s", saslPrepEscape(prepped), c.cnonce)
	c.clientFirstBare = bare
	c.step = Step2
	return base64.StdEncoding.EncodeToString([]byte(bare)), nil
}

// parseTokens parses a comma-separated k=v token list, as used in both
// the server's step-2 challenge and the step-3 success payload.
func parseTokens(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, tok := range strings.Split(s, ",") {
		if tok == "" {
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return nil, corerrs.InvalidChallenge("scram: malformed token %q", tok)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// Step2 consumes the server's base64 challenge and returns the
// base64-wrapped client final message. Any NUL byte in the decoded
// challenge is fatal.
func (c *Client) Step2(challengeB64 string) (string, error) {
	if c.step != Step2 {
		return "", corerrs.InvalidChallenge("scram: Step2 called out of order")
	}
	raw, err := base64.StdEncoding.DecodeString(challengeB64)
	if err != nil {
		c.step = StepAborted
		return "", corerrs.InvalidChallenge("scram: challenge is not valid base64: %v", err)
	}
	if strings.IndexByte(string(raw), 0) >= 0 {
		c.step = StepAborted
		return "", corerrs.InvalidChallenge("scram: NUL byte in server challenge")
	}
	c.serverChallenge = string(raw)

	tokens, err := parseTokens(c.serverChallenge)
	if err != nil {
		c.step = StepAborted
		return "", err
	}

	nonce, ok := tokens["r"]
	if !ok || !strings.HasPrefix(nonce, c.cnonce) {
		c.step = StepAborted
		return "", corerrs.InvalidChallenge("scram: server nonce does not extend our cnonce")
	}
	c.serverNonce = nonce

	saltB64, ok := tokens["s"]
	if !ok {
		c.step = StepAborted
		return "", corerrs.InvalidChallenge("scram: missing salt")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		c.step = StepAborted
		return "", corerrs.InvalidChallenge("scram: salt is not valid base64: %v", err)
	}

	iterations := c.minIterations
	if iStr, ok := tokens["i"]; ok {
		n, err := strconv.Atoi(iStr)
		if err != nil || n <= 0 {
			c.step = StepAborted
			return "", corerrs.InvalidChallenge("scram: iteration count %q is not a positive integer", iStr)
		}
		iterations = n
	} else if iterations <= 0 {
		c.step = StepAborted
		return "", corerrs.InvalidChallenge("scram: missing iteration count")
	}

	preppedPw, err := stringprep.SASLprep.Prepare(c.password)
	if err != nil {
		preppedPw = c.password
	}

	saltedPassword := Hi([]byte(preppedPw), salt, iterations)
	c.clientKey = hmacSHA1(saltedPassword, []byte("Client Key"))
	h := sha1.Sum(c.clientKey)
	c.storedKey = h[:]

	clientFinalNoProof := "c=biws,r=" + c.serverNonce
	authMessage := c.clientFirstBare + "," + c.serverChallenge + "," + clientFinalNoProof
	clientSignature := hmacSHA1(c.storedKey, []byte(authMessage))

	clientProof := xorBytes(c.clientKey, clientSignature)

	c.serverKey = hmacSHA1(saltedPassword, []byte("Server Key"))
	c.serverSigWant = hmacSHA1(c.serverKey, []byte(authMessage))

	msg := clientFinalNoProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	c.step = Step3
	return base64.StdEncoding.EncodeToString([]byte(msg)), nil
}

// Step3 verifies the server's success payload ("v=<base64 sig>") in
// constant time. A mismatch is a fatal AuthenticationFailed error.
func (c *Client) Step3(successB64 string) error {
	if c.step != Step3 {
		return corerrs.InvalidChallenge("scram: Step3 called out of order")
	}
	raw, err := base64.StdEncoding.DecodeString(successB64)
	if err != nil {
		c.step = StepAborted
		return corerrs.InvalidChallenge("scram: success payload is not valid base64: %v", err)
	}
	if strings.IndexByte(string(raw), 0) >= 0 {
		c.step = StepAborted
		return corerrs.InvalidChallenge("scram: NUL byte in server success payload")
	}
	tokens, err := parseTokens(string(raw))
	if err != nil {
		c.step = StepAborted
		return err
	}
	vB64, ok := tokens["v"]
	if !ok {
		c.step = StepAborted
		return corerrs.InvalidChallenge("scram: missing server signature")
	}
	got, err := base64.StdEncoding.DecodeString(vB64)
	if err != nil {
		c.step = StepAborted
		return corerrs.InvalidChallenge("scram: server signature is not valid base64: %v", err)
	}
	if subtle.ConstantTimeCompare(got, c.serverSigWant) != 1 {
		c.step = StepAborted
		return corerrs.AuthenticationFailed(nil, "scram: server signature mismatch")
	}
	return nil
}

// Step reports the mechanism's current position.
func (c *Client) Step() Step { return c.step }

// Hi is PBKDF2-HMAC-SHA-1 with one output block.
func Hi(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, sha1.Size, sha1.New)
}

func hmacSHA1(key, data []byte) []byte {
	h := hmac.New(sha1.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
