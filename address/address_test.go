package address

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_IsPrefixOfFamilyDigest(t *testing.T) {
	sum := sha512.Sum512([]byte("simplewallet"))
	want := hex.EncodeToString(sum[:])[:6]

	assert.Equal(t, want, Namespace("simplewallet"))
	assert.Len(t, Namespace("simplewallet"), NamespaceLength)
}

func TestDerive_UsesLastSixtyFourHexChars(t *testing.T) {
	key := "02a1633cafcc01ebfb6d78e39f687a1f0995c62fc95f51ead10a02ee0be551b5dc"
	sum := sha512.Sum512([]byte(key))
	digest := hex.EncodeToString(sum[:])

	addr := Derive("simplewallet", key)
	assert.Equal(t, Namespace("simplewallet")+digest[64:], addr)
	require.NoError(t, Validate(addr))
}

func TestDerive_DeterministicForAllKeys(t *testing.T) {
	f := fuzz.New().NilChance(0)
	prefix := Namespace("simplewallet")
	for i := 0; i < 500; i++ {
		var raw []byte
		f.Fuzz(&raw)
		key := hex.EncodeToString(raw)

		first := Derive("simplewallet", key)
		second := Derive("simplewallet", key)
		assert.Equal(t, first, second)
		assert.Len(t, first, Length)
		assert.True(t, InNamespace(first, prefix))
		assert.NoError(t, Validate(first))
	}
}

func TestDerive_DifferentKeysDifferentAddresses(t *testing.T) {
	a := Derive("simplewallet", "key-a")
	b := Derive("simplewallet", "key-b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a[:NamespaceLength], b[:NamespaceLength])
}

func TestValidate(t *testing.T) {
	good := Derive("simplewallet", "k")
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid", good, false},
		{"too short", good[:69], true},
		{"too long", good + "0", true},
		{"uppercase", "ABCDEF" + good[6:], true},
		{"non hex", "zzzzzz" + good[6:], true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
