package encryption

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "photovault/internal/errors"
)

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	t.Run("deterministic", func(t *testing.T) {
		k1 := DeriveKey("1234", salt, 1000)
		k2 := DeriveKey("1234", salt, 1000)
		assert.Len(t, k1, KeyLen)
		assert.Equal(t, k1, k2)
	})

	t.Run("depends on every input", func(t *testing.T) {
		base := DeriveKey("1234", salt, 1000)
		assert.NotEqual(t, base, DeriveKey("1235", salt, 1000))
		assert.NotEqual(t, base, DeriveKey("1234", []byte("fedcba9876543210"), 1000))
		assert.NotEqual(t, base, DeriveKey("1234", salt, 1001))
	})
}

func TestEncryptDecrypt(t *testing.T) {
	key := DeriveKey("pin", []byte("0123456789abcdef"), 1000)

	t.Run("round trip", func(t *testing.T) {
		ct, iv, err := Encrypt([]byte("hello"), key)
		require.NoError(t, err)
		assert.Len(t, iv, IVLen)
		assert.Len(t, ct, len("hello")+16, "ciphertext carries a 128-bit tag")

		pt, err := Decrypt(ct, key, iv)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), pt)
	})

	t.Run("fresh iv per call", func(t *testing.T) {
		_, iv1, err := Encrypt([]byte("x"), key)
		require.NoError(t, err)
		_, iv2, err := Encrypt([]byte("x"), key)
		require.NoError(t, err)
		assert.False(t, bytes.Equal(iv1, iv2))
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		ct, iv, err := Encrypt([]byte("hello"), key)
		require.NoError(t, err)
		ct[0] ^= 0xff
		_, err = Decrypt(ct, key, iv)
		assert.ErrorIs(t, err, apperrors.ErrBadCredential)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, _, err := Encrypt([]byte("hello"), []byte("short"))
		assert.Error(t, err)
	})
}

func TestSealOpen(t *testing.T) {
	plaintext := []byte(`{"version":2,"categories":[]}`)

	env, err := Seal(plaintext, "4321", 1000)
	require.NoError(t, err)
	assert.True(t, env.Encrypted)
	assert.Equal(t, Algorithm, env.Encryption.Algorithm)
	assert.Equal(t, KDF, env.Encryption.KDF)
	assert.Equal(t, 1000, env.Encryption.Iterations)

	salt, err := base64.StdEncoding.DecodeString(env.Encryption.Salt)
	require.NoError(t, err)
	assert.Len(t, salt, SaltLen)

	t.Run("correct credential", func(t *testing.T) {
		got, err := Open(env, "4321")
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})

	t.Run("wrong credential", func(t *testing.T) {
		_, err := Open(env, "0000")
		assert.ErrorIs(t, err, apperrors.ErrBadCredential)
	})

	t.Run("missing credential", func(t *testing.T) {
		_, err := Open(env, "")
		assert.ErrorIs(t, err, apperrors.ErrCredentialRequired)
	})

	t.Run("fresh salt per seal", func(t *testing.T) {
		other, err := Seal(plaintext, "4321", 1000)
		require.NoError(t, err)
		assert.NotEqual(t, env.Encryption.Salt, other.Encryption.Salt)
		assert.NotEqual(t, env.Data, other.Data)
	})

	t.Run("default iterations", func(t *testing.T) {
		e, err := Seal(plaintext, "4321", 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultIterations, e.Encryption.Iterations)
	})

	t.Run("iteration count from a hostile archive", func(t *testing.T) {
		for _, n := range []int{-1, 0, MaxIterations + 1, 2_000_000_000} {
			hostile := *env
			hostile.Encryption.Iterations = n
			_, err := Open(&hostile, "4321")
			assert.True(t, apperrors.IsValidation(err), "iterations %d: error = %v", n, err)
		}
	})

	t.Run("iteration count above the cap", func(t *testing.T) {
		_, err := Seal(plaintext, "4321", MaxIterations+1)
		assert.Error(t, err)
	})
}

func TestEnvelopeJSON(t *testing.T) {
	env, err := Seal([]byte("secret manifest"), "pin", 1000)
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.True(t, IsEnvelope(data))
	assert.False(t, IsEnvelope([]byte(`{"version":2,"categories":[]}`)))
	assert.False(t, IsEnvelope([]byte(`not json "encrypted"`)))

	parsed, err := ParseEnvelope(data)
	require.NoError(t, err)
	got, err := Open(parsed, "pin")
	require.NoError(t, err)
	assert.Equal(t, "secret manifest", string(got))

	_, err = ParseEnvelope([]byte(`{"version":2}`))
	assert.Error(t, err)
}
