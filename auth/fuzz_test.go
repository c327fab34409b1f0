package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// FuzzVerify feeds arbitrary strings to the verifier. Whatever the input,
// verification must return one of the classified sentinel errors (or succeed
// for a genuinely valid token) and never panic.
func FuzzVerify(f *testing.F) {
	codec, err := NewHMACTokenCodec(testSecret)
	if err != nil {
		f.Fatalf("NewHMACTokenCodec error: %v", err)
	}
	valid, err := codec.Issue(context.Background(), Claims{UserID: 1}, time.Hour)
	if err != nil {
		f.Fatalf("Issue error: %v", err)
	}

	f.Add("")
	f.Add("a.b.c")
	f.Add(valid)
	f.Add("eyJhbGciOiJub25lIn0..")

	f.Fuzz(func(t *testing.T, raw string) {
		claims, err := codec.Verify(context.Background(), raw)
		if err == nil {
			if claims.UserID <= 0 {
				t.Errorf("accepted token without a subject: %q", raw)
			}
			return
		}
		known := errors.Is(err, ErrTokenMalformed) ||
			errors.Is(err, ErrTokenBadSignature) ||
			errors.Is(err, ErrTokenExpired) ||
			errors.Is(err, ErrTokenUnsupportedAlg)
		if !known {
			t.Errorf("Verify(%q) returned unclassified error %v", raw, err)
		}
	})
}
