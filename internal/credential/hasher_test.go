package credential

import (
	"errors"
	"strings"
	"testing"
)

// テストでは計算コストを下げたパラメータを使う
var testParams = Argon2Params{Time: 1, Memory: 1024, Threads: 1}

func TestArgon2Hasher_Hash_Format(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	encoded, err := h.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("unexpected hash format: %s", encoded)
	}
	if strings.Contains(encoded, "pw123") {
		t.Error("hash must not contain the plaintext")
	}
}

func TestArgon2Hasher_Hash_SamePasswordDifferentSalt(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	a, err := h.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	b, err := h.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password must differ")
	}
}

func TestArgon2Hasher_Compare(t *testing.T) {
	h := NewArgon2Hasher(testParams)
	encoded, err := h.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "一致", password: "pw123", want: true},
		{name: "末尾に追加", password: "pw123x", want: false},
		{name: "空", password: "", want: false},
		{name: "大文字小文字違い", password: "PW123", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Compare(encoded, tt.password)
			if err != nil {
				t.Fatalf("Compare returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArgon2Hasher_Compare_UsesStoredParams(t *testing.T) {
	encoded, err := NewArgon2Hasher(testParams).Hash("pw123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	// パラメータを変更したHasherでも既存ハッシュを照合できる
	other := NewArgon2Hasher(Argon2Params{Time: 2, Memory: 2048, Threads: 2})
	ok, err := other.Compare(encoded, "pw123")
	if err != nil {
		t.Fatalf("Compare returned error: %v", err)
	}
	if !ok {
		t.Error("expected stored params to be honored")
	}
}

func TestArgon2Hasher_Compare_MalformedHash(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	for _, encoded := range []string{
		"",
		"pw123",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
	} {
		if _, err := h.Compare(encoded, "pw123"); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("Compare(%q) err = %v, want ErrMalformedHash", encoded, err)
		}
	}
}

func TestNewArgon2Hasher_ZeroParamsUseDefaults(t *testing.T) {
	h := NewArgon2Hasher(Argon2Params{})
	if h.params != DefaultArgon2Params {
		t.Errorf("params = %+v, want %+v", h.params, DefaultArgon2Params)
	}
}
