package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds how stale a signed timestamp may be; replays of
// old deliveries outside this window are rejected.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks the gateway's webhook signature header against the
// raw body. The header format is "t=<unix>,v1=<hex>", where v1 is
// HMAC-SHA256 over "<unix>.<body>" keyed with the shared secret.
func VerifySignature(secret, header string, body []byte) error {
	if secret == "" {
		return ErrUnconfigured
	}

	var tsPart, sigPart string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			tsPart = kv[1]
		case "v1":
			sigPart = kv[1]
		}
	}
	if tsPart == "" || sigPart == "" {
		return ErrBadSignature
	}

	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if d := time.Since(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return ErrBadSignature
	}

	expected := computeSignature([]byte(secret), ts, body)
	provided, err := hex.DecodeString(sigPart)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(expected, provided) {
		return ErrBadSignature
	}
	return nil
}

func computeSignature(secret []byte, ts int64, body []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(ts, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return m.Sum(nil)
}

// SignPayload produces a header value the verifier accepts; used by tests
// and the webhook replay tool.
func SignPayload(secret string, ts int64, body []byte) string {
	sig := computeSignature([]byte(secret), ts, body)
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(sig)
}
