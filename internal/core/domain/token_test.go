package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenMinter_Mint(t *testing.T) {
	m, err := NewTokenMinter()
	if err != nil {
		t.Fatalf("NewTokenMinter() error = %v", err)
	}

	plaintext, digest, err := m.Mint()
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if len(plaintext) != TokenLength {
		t.Errorf("len(plaintext) = %d, want %d", len(plaintext), TokenLength)
	}
	if !WellFormedToken(plaintext) {
		t.Errorf("WellFormedToken(%q) = false, want true", plaintext)
	}
	if !strings.HasPrefix(digest, TokenHashPrefix) {
		t.Errorf("digest %q lacks %s", digest, TokenHashPrefix)
	}
	if strings.Contains(digest, plaintext[len(TokenPrefix):]) {
		t.Error("digest embeds the plaintext")
	}
	if m.Digest(plaintext) != digest {
		t.Error("Digest(plaintext) should equal the minted digest")
	}
}

func TestTokenMinter_Distinct(t *testing.T) {
	m, _ := NewTokenMinter()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		p, _, err := m.Mint()
		if err != nil {
			t.Fatalf("Mint() error = %v", err)
		}
		if _, dup := seen[p]; dup {
			t.Fatalf("Mint() repeated %q", p)
		}
		seen[p] = struct{}{}
	}
}

func TestTokenMinter_KeyScopesDigest(t *testing.T) {
	a, err := NewTokenMinterWithKey([]byte("process-a"))
	if err != nil {
		t.Fatalf("NewTokenMinterWithKey() error = %v", err)
	}
	b, _ := NewTokenMinterWithKey([]byte("process-b"))
	again, _ := NewTokenMinterWithKey([]byte("process-a"))

	p, digest, _ := a.Mint()
	if b.Digest(p) == digest {
		t.Error("minters with different keys produced the same digest")
	}
	if again.Digest(p) != digest {
		t.Error("minters with the same key should agree")
	}
}

func TestNewTokenMinterWithKey_TooLong(t *testing.T) {
	_, err := NewTokenMinterWithKey(make([]byte, 100))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewTokenMinterWithKey() error = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestWellFormedToken(t *testing.T) {
	m, _ := NewTokenMinter()
	valid, digest, _ := m.Mint()
	body := valid[len(TokenPrefix):]

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"minted", valid, true},
		{"empty", "", false},
		{"prefix only", TokenPrefix, false},
		{"digest", digest, false},
		{"wrong prefix", "pmxx_" + body, false},
		{"truncated", valid[:len(valid)-1], false},
		{"padded", valid + "=", false},
		{"not base64url", TokenPrefix + strings.Repeat("+", len(body)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WellFormedToken(tt.token); got != tt.want {
				t.Errorf("WellFormedToken(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}
