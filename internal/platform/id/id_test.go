package id

import (
	"encoding/base32"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func decode(t *testing.T, requestID string) uuid.UUID {
	t.Helper()
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(requestID))
	if err != nil {
		t.Fatalf("decode %q: %v", requestID, err)
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		t.Fatalf("uuid from %q: %v", requestID, err)
	}
	return u
}

func TestNewIDIsHeaderSafeUUID(t *testing.T) {
	requestID, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(requestID) != 26 {
		t.Fatalf("request id %q has %d characters, want 26", requestID, len(requestID))
	}
	if strings.ToLower(requestID) != requestID || strings.ContainsAny(requestID, "=+/ ") {
		t.Fatalf("request id %q is not lowercase unpadded base32", requestID)
	}
	u := decode(t, requestID)
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		t.Fatalf("request id %q decodes to version %d variant %s", requestID, u.Version(), u.Variant())
	}
}

func TestNewIDDoesNotRepeat(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for range 256 {
		requestID, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if _, dup := seen[requestID]; dup {
			t.Fatalf("duplicate request id %q", requestID)
		}
		seen[requestID] = struct{}{}
	}
}
