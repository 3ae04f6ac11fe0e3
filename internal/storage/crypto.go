package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Wire formats, distinguished by an 8-byte magic prefix. New uploads
// use CBC; GCM payloads from older tooling remain readable.
const (
	formatCBC = "3NCR0PTD"
	formatGCM = "GCM3NCR0"
)

const (
	pbkdf2Iterations = 100000
	keyLen           = 32
	saltLen          = 16
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLen, sha256.New)
}

// EncryptCBC produces the CBC wire format:
// magic(8) + sha256(32) + length(8) + salt(16) + iv(16) + ciphertext.
// The hash covers salt+iv+ciphertext and detects corruption before any
// decryption work.
func EncryptCBC(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate IV: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := padPKCS7(data, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	encrypted := make([]byte, 0, saltLen+aes.BlockSize+len(ciphertext))
	encrypted = append(encrypted, salt...)
	encrypted = append(encrypted, iv...)
	encrypted = append(encrypted, ciphertext...)

	hash := sha256.Sum256(encrypted)
	lengthBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(lengthBytes, uint64(len(encrypted)))

	out := make([]byte, 0, 8+32+8+len(encrypted))
	out = append(out, formatCBC...)
	out = append(out, hash[:]...)
	out = append(out, lengthBytes...)
	out = append(out, encrypted...)
	return out, nil
}

// Decrypt auto-detects the wire format by magic number and returns the
// plaintext and the format name.
func Decrypt(encrypted []byte, password string) ([]byte, string, error) {
	if len(encrypted) < 8 {
		return nil, "", fmt.Errorf("encrypted data too short: %d bytes", len(encrypted))
	}

	switch string(encrypted[:8]) {
	case formatCBC:
		data, err := decryptCBC(encrypted, password)
		return data, formatCBC, err
	case formatGCM:
		data, err := decryptGCM(encrypted, password)
		return data, formatGCM, err
	default:
		return nil, "", fmt.Errorf("unknown encryption format")
	}
}

func decryptCBC(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < 8+32+8+saltLen+aes.BlockSize {
		return nil, fmt.Errorf("CBC data too short: %d bytes", len(encrypted))
	}

	storedHash := encrypted[8:40]
	length := binary.BigEndian.Uint64(encrypted[40:48])
	body := encrypted[48:]

	if uint64(len(body)) != length {
		return nil, fmt.Errorf("length mismatch: expected %d, got %d", length, len(body))
	}
	calc := sha256.Sum256(body)
	if !bytes.Equal(storedHash, calc[:]) {
		return nil, fmt.Errorf("hash verification failed")
	}

	salt := body[:saltLen]
	iv := body[saltLen : saltLen+aes.BlockSize]
	ciphertext := body[saltLen+aes.BlockSize:]

	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of block size")
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpadPKCS7(plaintext)
}

func decryptGCM(encrypted []byte, password string) ([]byte, error) {
	// magic(8) + salt(16) + nonce(12) + ciphertext+tag
	if len(encrypted) < 8+saltLen+12+16 {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(encrypted))
	}

	salt := encrypted[8 : 8+saltLen]
	nonce := encrypted[8+saltLen : 8+saltLen+12]
	ciphertext := encrypted[8+saltLen+12:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plaintext, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding length: %d", n)
	}
	for i := len(data) - n; i < len(data); i++ {
		if data[i] != byte(n) {
			return nil, fmt.Errorf("invalid padding at position %d", i)
		}
	}
	return data[:len(data)-n], nil
}
