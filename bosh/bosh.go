// Package bosh implements an XMPP-over-HTTP long-polling transport,
// ported from the jabber plugin's bosh.c: a session identified by sid, a
// strictly-increasing rid per request, and a send-coalescing timer that
// batches stanzas queued within a short window into a single HTTP round
// trip.
package bosh

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/xml"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/chatcore/corerun/config"
	"github.com/chatcore/corerun/corerrs"
)

const (
	// NSBOSH and NSXMPPBOSH mirror bosh.c's NS_BOSH / NS_XMPP_BOSH.
	NSBOSH     = "http://jabber.org/protocol/httpbind"
	NSXMPPBOSH = "urn:xmpp:xbosh"

	// requestTimeoutHeadroom is added on top of the negotiated wait
	// value to get the per-request HTTP deadline (JABBER_BOSH_TIMEOUT in
	// bosh.c allows wait seconds for the long poll, plus headroom for
	// libsoup's own request lifecycle).
	requestTimeoutHeadroom = 2 * time.Second
)

// body is the <body/> envelope exchanged over BOSH, both directions.
type body struct {
	XMLName xml.Name `xml:"body"`
	XMLNS   string   `xml:"xmlns,attr"`
	XMPPNS  string   `xml:"xmlns:xmpp,attr,omitempty"`
	RID     uint64   `xml:"rid,attr,omitempty"`
	SID     string   `xml:"sid,attr,omitempty"`
	To      string   `xml:"to,attr,omitempty"`
	Content string   `xml:"content,attr,omitempty"`
	Type    string   `xml:"type,attr,omitempty"`
	Restart string   `xml:"xmpp:restart,attr,omitempty"`
	Wait    int      `xml:"wait,attr,omitempty"`
	Hold    int      `xml:"hold,attr,omitempty"`
	Ver     string   `xml:"ver,attr,omitempty"`
	Lang    string   `xml:"xml:lang,attr,omitempty"`

	// Payload carries the raw inner stanzas verbatim; BOSH is agnostic
	// to the XMPP payload it shuttles.
	Payload []byte `xml:",innerxml"`
}

// serverBody is what a server reply decodes into; the fields that only
// ever appear on session-creation responses are separated out so a
// normal poll reply doesn't need to carry them.
type serverBody struct {
	XMLName     xml.Name `xml:"body"`
	SID         string   `xml:"sid,attr"`
	Ver         string   `xml:"ver,attr"`
	Inactivity  string   `xml:"inactivity,attr"`
	Type        string   `xml:"type,attr"`
	Payload     []byte   `xml:",innerxml"`
}

// Doer is the subset of *http.Client BOSH needs; tests supply a fake.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Session is one BOSH connection manager session.
// At most one send timer is ever armed at a time; the invariant is
// enforced by sendTimer being nil whenever no flush is pending.
type Session struct {
	mu sync.Mutex

	url    string
	client Doer

	sid string
	rid uint64

	sendBuf     bytes.Buffer
	sendTimer   *time.Timer
	terminated  bool
	restartNext bool

	inactivity time.Duration

	sendDelay            time.Duration
	inactivityMargin     time.Duration
	maxInactivitySeconds int
	requestTimeout       time.Duration

	onStanza func([]byte)
	onError  func(error)
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithClient overrides the HTTP client (tests use this to inject a fake
// Doer instead of a real network round trip).
func WithClient(c Doer) Option {
	return func(s *Session) { s.client = c }
}

// WithStanzaHandler registers the callback invoked with each inbound
// stanza's raw bytes.
func WithStanzaHandler(fn func([]byte)) Option {
	return func(s *Session) { s.onStanza = fn }
}

// WithErrorHandler registers the callback invoked on fatal transport
// errors (network failure, a type='terminate' body, version mismatch).
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// WithConfig overrides the BOSH defaults (send-coalescing window,
// inactivity rounding margin, and the inactivity ceiling) that New
// otherwise takes from config.Default().BOSH.
func WithConfig(cfg config.BOSHDefaults) Option {
	return func(s *Session) {
		s.sendDelay = cfg.SendDelay
		s.inactivityMargin = cfg.InactivityMargin
		s.maxInactivitySeconds = cfg.MaxInactivitySeconds
		s.requestTimeout = time.Duration(cfg.Wait)*time.Second + requestTimeoutHeadroom
	}
}

// New constructs a Session bound to url but does not yet create it on
// the wire; call Create to do that. Defaults come from
// config.Default().BOSH unless overridden with WithConfig.
func New(url string, opts ...Option) *Session {
	cfg := config.Default().BOSH
	s := &Session{
		url:                  url,
		client:               http.DefaultClient,
		sendDelay:            cfg.SendDelay,
		inactivityMargin:     cfg.InactivityMargin,
		maxInactivitySeconds: cfg.MaxInactivitySeconds,
		requestTimeout:       time.Duration(cfg.Wait)*time.Second + requestTimeoutHeadroom,
	}
	for _, o := range opts {
		o(s)
	}
	rid, err := randomRID()
	if err != nil {
		rid = 1
	}
	s.rid = rid
	return s
}

// randomRID mirrors bosh.c's "random 64-bit integer masked to 2^52-1"
// initial rid.
func randomRID() (uint64, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 52)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// nextRID returns the next rid to send, incrementing the counter. The
// caller must hold s.mu.
func (s *Session) nextRID() uint64 {
	s.rid++
	return s.rid
}

// Create issues the BOSH session-creation request: an
// unauthenticated <body/> naming the target domain, wait/hold
// parameters, and the BOSH/XMPP namespaces. On success it records sid
// and the server's inactivity window.
func (s *Session) Create(ctx context.Context, to string, wait, hold int) ([]byte, error) {
	s.mu.Lock()
	rid := s.nextRID()
	s.requestTimeout = time.Duration(wait)*time.Second + requestTimeoutHeadroom
	s.mu.Unlock()

	req := &body{
		XMLNS:   NSBOSH,
		XMPPNS:  NSXMPPBOSH,
		RID:     rid,
		To:      to,
		Content: "text/xml; charset=utf-8",
		Wait:    wait,
		Hold:    hold,
		Ver:     "1.10",
		Lang:    "en",
	}
	reply, err := s.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	if reply.SID == "" {
		return nil, corerrs.Network(nil, "bosh: no session ID given")
	}
	if reply.Ver != "" && !versionSupported(reply.Ver, 1, 6) {
		return nil, corerrs.Network(nil, "bosh: unsupported BOSH version %q", reply.Ver)
	}

	s.mu.Lock()
	s.sid = reply.SID
	s.inactivity = s.parseInactivityLocked(reply.Inactivity)
	s.mu.Unlock()

	return reply.Payload, nil
}

// versionSupported mirrors jabber_bosh_version_check: major must match
// exactly, minor must be at least minMinor.
func versionSupported(ver string, major, minMinor int) bool {
	var gotMajor, gotMinor int
	if _, err := fmt.Sscanf(ver, "%d.%d", &gotMajor, &gotMinor); err != nil {
		return false
	}
	return gotMajor == major && gotMinor >= minMinor
}

// parseInactivityLocked ignores (returns 0 for) a server-advertised
// inactivity window outside (0, maxInactivitySeconds] and otherwise
// compensates for rounding the same way bosh.c does, subtracting the
// margin and flooring the result at 1s. The caller must hold s.mu.
func (s *Session) parseInactivityLocked(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(raw, "%d", &secs); err != nil || secs <= 0 || secs > s.maxInactivitySeconds {
		return 0
	}
	d := time.Duration(secs)*time.Second - s.inactivityMargin
	if secs > 0 && d <= 0 {
		d = time.Second
	}
	return d
}

// Inactivity returns the server's advertised inactivity timeout, after
// rounding compensation, or 0 if none was set.
func (s *Session) Inactivity() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inactivity
}

// SID returns the session id, or "" before Create succeeds.
func (s *Session) SID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// RID returns the last rid used, for tests asserting monotonicity.
func (s *Session) RID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rid
}

// Send enqueues stanza bytes for the next flush, arming the
// send-coalescing timer if one isn't already pending (bosh.c's
// jabber_bosh_connection_send). A nil stanza just makes sure a flush
// happens — used after handling an inbound reply to keep the long-poll
// alive.
func (s *Session) Send(ctx context.Context, stanza []byte) {
	s.mu.Lock()
	if stanza != nil {
		s.sendBuf.Write(stanza)
	}
	if s.sendTimer != nil {
		s.mu.Unlock()
		return
	}
	s.sendTimer = time.AfterFunc(s.sendDelay, func() {
		s.flush(ctx)
	})
	s.mu.Unlock()
}

// SendNow bypasses the coalescing timer and flushes immediately
// (bosh.c's jabber_bosh_connection_send_keepalive / termination path).
func (s *Session) SendNow(ctx context.Context) {
	s.mu.Lock()
	if s.sendTimer != nil {
		s.sendTimer.Stop()
		s.sendTimer = nil
	}
	s.mu.Unlock()
	s.flush(ctx)
}

// Restart arms xmpp:restart='true' on the next flush, without itself
// triggering one — the caller still drives that through Send/SendNow.
// Used once SASL auth succeeds, to ask the connection manager to
// restart the XMPP stream over the existing BOSH session instead of
// tearing it down and reconnecting.
func (s *Session) Restart() {
	s.mu.Lock()
	s.restartNext = true
	s.mu.Unlock()
}

func (s *Session) flush(ctx context.Context) {
	s.mu.Lock()
	s.sendTimer = nil
	if s.sid == "" {
		s.mu.Unlock()
		return
	}
	rid := s.nextRID()
	payload := append([]byte(nil), s.sendBuf.Bytes()...)
	s.sendBuf.Reset()
	terminating := s.terminated
	restart := s.restartNext && !terminating
	s.restartNext = false
	sid := s.sid
	s.mu.Unlock()

	req := &body{XMLNS: NSBOSH, RID: rid, SID: sid, Payload: payload}
	// terminate and restart are mutually exclusive: a session being torn
	// down has no stream left to restart.
	switch {
	case terminating:
		req.Type = "terminate"
	case restart:
		req.Restart = "true"
	}

	reply, err := s.roundTrip(ctx, req)
	if err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	if reply.Type == "terminate" {
		if s.onError != nil {
			s.onError(corerrs.OtherServer("bosh: connection manager terminated the session"))
		}
		return
	}
	if s.onStanza != nil && len(reply.Payload) > 0 {
		s.onStanza(rewriteClientNamespaces(reply.Payload))
	}
	if !terminating {
		// Keep the long-poll alive even with nothing new to say.
		s.Send(ctx, nil)
	}
}

// rewriteClientNamespaces patches the xmlns of each top-level
// iq/message/presence child of a BOSH reply body to jabber:client when
// it is missing or left at the BOSH namespace, the workaround
// jabber_bosh_connection_parse applies for connection managers that
// don't stamp stanzas with jabber:client themselves. Anything else
// (non-stanza children, already-correct namespaces) passes through
// unchanged. Falls back to the original bytes if the payload doesn't
// parse as XML.
func rewriteClientNamespaces(raw []byte) []byte {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var out bytes.Buffer
	enc := xml.NewEncoder(&out)
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 && isStanzaName(t.Name.Local) && (t.Name.Space == "" || t.Name.Space == NSBOSH) {
				t.Name.Space = "jabber:client"
			}
			tok = t
		case xml.EndElement:
			depth--
		}
		if err := enc.EncodeToken(tok); err != nil {
			return raw
		}
	}
	if depth != 0 {
		// Malformed/truncated payload; don't hand back a partial rewrite.
		return raw
	}
	if err := enc.Flush(); err != nil {
		return raw
	}
	return out.Bytes()
}

func isStanzaName(local string) bool {
	switch local {
	case "iq", "message", "presence":
		return true
	default:
		return false
	}
}

// Destroy terminates the session: it flushes a type='terminate' body
// immediately and marks the session unusable (bosh.c's
// jabber_bosh_connection_destroy). Idempotent.
func (s *Session) Destroy(ctx context.Context) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	hasSID := s.sid != ""
	if s.sendTimer != nil {
		s.sendTimer.Stop()
		s.sendTimer = nil
	}
	s.mu.Unlock()

	if hasSID {
		s.flush(ctx)
	}
}

func (s *Session) roundTrip(ctx context.Context, req *body) (*serverBody, error) {
	payload, err := xml.Marshal(req)
	if err != nil {
		return nil, corerrs.Network(err, "bosh: marshalling request body")
	}

	s.mu.Lock()
	timeout := s.requestTimeout
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, corerrs.Network(err, "bosh: building HTTP request")
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, corerrs.Network(err, "bosh: HTTP request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, corerrs.Network(err, "bosh: reading response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, corerrs.Network(nil, "bosh: unexpected HTTP status %d", resp.StatusCode)
	}

	var sb serverBody
	if err := xml.Unmarshal(raw, &sb); err != nil {
		return nil, corerrs.InvalidChallenge("bosh: malformed <body/> response: %v", err)
	}
	return &sb, nil
}
