package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"patient_info": {"name": "John Doe"}}`)

	encrypted, err := EncryptCBC(plaintext, "secret")
	require.NoError(t, err)
	assert.Equal(t, formatCBC, string(encrypted[:8]))
	assert.NotContains(t, string(encrypted), "John Doe")

	decrypted, format, err := Decrypt(encrypted, "secret")
	require.NoError(t, err)
	assert.Equal(t, formatCBC, format)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWrongPassword(t *testing.T) {
	encrypted, err := EncryptCBC([]byte("confidential report"), "secret")
	require.NoError(t, err)

	// CBC with a wrong key yields garbage. Usually the padding check
	// catches it; if a random tail happens to look like padding the
	// plaintext still comes out wrong.
	decrypted, _, err := Decrypt(encrypted, "wrong")
	if err == nil {
		assert.NotEqual(t, []byte("confidential report"), decrypted)
	}
}

func TestDecryptCorruptedData(t *testing.T) {
	encrypted, err := EncryptCBC([]byte("confidential report"), "secret")
	require.NoError(t, err)

	encrypted[len(encrypted)-1] ^= 0xff
	_, _, err = Decrypt(encrypted, "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash verification failed")
}

func TestDecryptUnknownFormat(t *testing.T) {
	_, _, err := Decrypt([]byte("NOTMAGIC plus some payload"), "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown encryption format")

	_, _, err = Decrypt([]byte("short"), "secret")
	assert.Error(t, err)
}

func TestDecryptGCMFormat(t *testing.T) {
	plaintext := []byte("legacy payload")
	password := "secret"

	salt := make([]byte, 16)
	nonce := make([]byte, 12)
	_, err := io.ReadFull(rand.Reader, salt)
	require.NoError(t, err)
	_, err = io.ReadFull(rand.Reader, nonce)
	require.NoError(t, err)

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	payload := append([]byte(formatGCM), salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	decrypted, format, err := Decrypt(payload, password)
	require.NoError(t, err)
	assert.Equal(t, formatGCM, format)
	assert.Equal(t, plaintext, decrypted)
}

func TestPKCS7(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 100} {
		data := make([]byte, n)
		padded := padPKCS7(data, aes.BlockSize)
		assert.Zero(t, len(padded)%aes.BlockSize)
		unpadded, err := unpadPKCS7(padded)
		require.NoError(t, err)
		assert.Equal(t, data, unpadded)
	}
}
