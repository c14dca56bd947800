package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerAgentID   = "x-agent-id"
	headerTS        = "x-ts"
	headerSignature = "x-signature"
	headerNonce     = "x-nonce"
)

// Requests are signed within this window of the server clock.
const signatureWindow = 5 * time.Minute

func canonicalString(ts, method, path, agentID, nonce string, body []byte) string {
	return strings.Join([]string{
		ts,
		strings.ToUpper(method),
		path,
		strings.TrimSpace(agentID),
		strings.TrimSpace(nonce),
		string(body),
	}, "\n")
}

func signHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns the headers an agent attaches to a request.
func Sign(secret []byte, agentID, nonce, method, path string, body []byte, now time.Time) http.Header {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	h := http.Header{}
	h.Set(headerAgentID, agentID)
	h.Set(headerTS, ts)
	h.Set(headerNonce, nonce)
	h.Set(headerSignature, signHMAC(secret, canonicalString(ts, method, path, agentID, nonce, body)))
	return h
}

type verifyResult struct {
	SessionKey string
	Signature  string
	HTTPStatus int
	Message    string
}

func deny(msg string) verifyResult {
	return verifyResult{HTTPStatus: http.StatusUnauthorized, Message: msg}
}

func verifyHMAC(r *http.Request, body, secret []byte, now time.Time) verifyResult {
	agentID := strings.TrimSpace(r.Header.Get(headerAgentID))
	if agentID == "" {
		return deny("missing x-agent-id")
	}
	tsStr := strings.TrimSpace(r.Header.Get(headerTS))
	if tsStr == "" {
		return deny("missing x-ts")
	}
	sig := strings.ToLower(strings.TrimSpace(r.Header.Get(headerSignature)))
	if sig == "" {
		return deny("missing x-signature")
	}
	nonce := strings.TrimSpace(r.Header.Get(headerNonce))
	if nonce == "" {
		return deny("missing x-nonce")
	}

	tsMS, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return deny("bad x-ts")
	}
	if d := now.Sub(time.UnixMilli(tsMS)); d > signatureWindow || d < -signatureWindow {
		return deny("x-ts outside window")
	}

	want := signHMAC(secret, canonicalString(tsStr, r.Method, r.URL.Path, agentID, nonce, body))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return deny("bad signature")
	}
	return verifyResult{SessionKey: agentID, Signature: sig}
}
