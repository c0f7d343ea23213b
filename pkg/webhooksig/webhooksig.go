// Package webhooksig verifies timestamped HMAC-SHA256 webhook signatures of the form
//
//	t=1700000000,v1=5257a869e7ecebeda32affa62cdca3fa51cad7e77a0e56ff536d0ce8e108d8bd
//
// where each v1 digest is hex(HMAC-SHA256(secret, t + "." + body)). Several v1
// entries may be present while a provider rotates secrets.
package webhooksig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	timestampKey = "t"
	digestKey    = "v1"
)

// Verifier checks signature headers. The zero value accepts any timestamp.
type Verifier struct {
	// Tolerance bounds the distance between the signed timestamp and Now. Zero disables the check.
	Tolerance time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Verify reports whether header authenticates payload under secret.
// An empty secret is treated as vacuously valid; callers persist the real outcome.
func Verify(payload []byte, header, secret string) bool {
	return Verifier{}.Verify(payload, header, secret)
}

func (v Verifier) Verify(payload []byte, header, secret string) bool {
	if secret == "" {
		return true
	}

	timestamp, digests, ok := parseHeader(header)
	if !ok {
		return false
	}

	if v.Tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return false
		}
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		skew := now().Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.Tolerance {
			return false
		}
	}

	expected := compute(secret, timestamp, payload)
	for _, digest := range digests {
		given, err := hex.DecodeString(digest)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, given) {
			return true
		}
	}
	return false
}

// Sign renders a header for payload at ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	return timestampKey + "=" + timestamp + "," + digestKey + "=" + hex.EncodeToString(compute(secret, timestamp, payload))
}

func compute(secret, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

func parseHeader(header string) (string, []string, bool) {
	var (
		timestamp string
		digests   []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || value == "" {
			continue
		}
		switch key {
		case timestampKey:
			timestamp = value
		case digestKey:
			digests = append(digests, value)
		}
	}
	if timestamp == "" || len(digests) == 0 {
		return "", nil, false
	}
	return timestamp, digests, true
}
