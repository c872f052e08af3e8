// Package officecrypto decrypts password-protected Office Open XML files that
// use ECMA-376 agile encryption.
//
// Such files are not zip archives. They are compound file (CFB) containers
// holding an EncryptionInfo stream (key parameters and password verifier) and
// an EncryptedPackage stream (the AES encrypted zip).
package officecrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"
)

var (
	ErrNotEncrypted          = errors.New("document is not encrypted")
	ErrWrongPassword         = errors.New("wrong password")
	ErrUnsupportedEncryption = errors.New("unsupported encryption")
)

const (
	streamEncryptionInfo   = "EncryptionInfo"
	streamEncryptedPackage = "EncryptedPackage"

	segmentLength = 4096
)

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Block keys from MS-OFFCRYPTO 2.3.4.13.
var (
	blockKeyVerifierInput = []byte{0xfe, 0xa7, 0xd2, 0x76, 0x3b, 0x4b, 0x9e, 0x79}
	blockKeyVerifierHash  = []byte{0xd7, 0xaa, 0x0f, 0x6d, 0x30, 0x61, 0x34, 0x4e}
	blockKeyKeyValue      = []byte{0x14, 0x6e, 0x0b, 0xe7, 0xab, 0xac, 0xd0, 0xd6}
)

// IsCFB reports whether data starts with the compound file signature.
func IsCFB(data []byte) bool {
	return bytes.HasPrefix(data, cfbSignature)
}

// IsEncrypted reports whether data is an encrypted Office package.
func IsEncrypted(data []byte) bool {
	if !IsCFB(data) {
		return false
	}
	info, _, err := readStreams(data)
	return err == nil && info != nil
}

// Decrypt returns the decrypted zip package held in the container data.
func Decrypt(data []byte, password string) ([]byte, error) {
	if !IsCFB(data) {
		return nil, ErrNotEncrypted
	}
	info, pkg, err := readStreams(data)
	if err != nil {
		return nil, err
	}
	if info == nil || pkg == nil {
		return nil, ErrNotEncrypted
	}
	return DecryptStreams(info, pkg, password)
}

func readStreams(data []byte) (info, pkg []byte, err error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open compound file: %w", err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case streamEncryptionInfo:
			if info, err = io.ReadAll(entry); err != nil {
				return nil, nil, fmt.Errorf("failed to read %s: %w", entry.Name, err)
			}
		case streamEncryptedPackage:
			if pkg, err = io.ReadAll(entry); err != nil {
				return nil, nil, fmt.Errorf("failed to read %s: %w", entry.Name, err)
			}
		}
	}
	return info, pkg, nil
}

type encryptionDescriptor struct {
	XMLName       xml.Name       `xml:"encryption"`
	KeyData       keyData        `xml:"keyData"`
	KeyEncryptors []keyEncryptor `xml:"keyEncryptors>keyEncryptor"`
}

type keyData struct {
	SaltSize        int    `xml:"saltSize,attr"`
	BlockSize       int    `xml:"blockSize,attr"`
	KeyBits         int    `xml:"keyBits,attr"`
	HashSize        int    `xml:"hashSize,attr"`
	CipherAlgorithm string `xml:"cipherAlgorithm,attr"`
	CipherChaining  string `xml:"cipherChaining,attr"`
	HashAlgorithm   string `xml:"hashAlgorithm,attr"`
	SaltValue       string `xml:"saltValue,attr"`
}

type keyEncryptor struct {
	URI          string        `xml:"uri,attr"`
	EncryptedKey *encryptedKey `xml:"encryptedKey"`
}

type encryptedKey struct {
	keyData
	SpinCount                  int    `xml:"spinCount,attr"`
	EncryptedVerifierHashInput string `xml:"encryptedVerifierHashInput,attr"`
	EncryptedVerifierHashValue string `xml:"encryptedVerifierHashValue,attr"`
	EncryptedKeyValue          string `xml:"encryptedKeyValue,attr"`
}

// parseInfo validates the EncryptionInfo header and returns the agile descriptor.
func parseInfo(info []byte) (*encryptionDescriptor, error) {
	if len(info) < 8 {
		return nil, fmt.Errorf("%w: EncryptionInfo too short", ErrUnsupportedEncryption)
	}
	major := binary.LittleEndian.Uint16(info[0:2])
	minor := binary.LittleEndian.Uint16(info[2:4])
	if major != 4 || minor != 4 {
		return nil, fmt.Errorf("%w: version %d.%d (only agile 4.4 is supported)", ErrUnsupportedEncryption, major, minor)
	}

	var desc encryptionDescriptor
	if err := xml.Unmarshal(info[8:], &desc); err != nil {
		return nil, fmt.Errorf("failed to parse encryption descriptor: %w", err)
	}
	if desc.KeyData.CipherAlgorithm != "AES" || desc.KeyData.CipherChaining != "ChainingModeCBC" {
		return nil, fmt.Errorf("%w: cipher %s/%s", ErrUnsupportedEncryption, desc.KeyData.CipherAlgorithm, desc.KeyData.CipherChaining)
	}
	return &desc, nil
}

func (d *encryptionDescriptor) passwordKey() (*encryptedKey, error) {
	for _, ke := range d.KeyEncryptors {
		if ke.EncryptedKey != nil {
			return ke.EncryptedKey, nil
		}
	}
	return nil, fmt.Errorf("%w: no password key encryptor", ErrUnsupportedEncryption)
}

// DecryptStreams decrypts an EncryptedPackage stream using the parameters in
// the EncryptionInfo stream.
func DecryptStreams(info, pkg []byte, password string) ([]byte, error) {
	desc, err := parseInfo(info)
	if err != nil {
		return nil, err
	}
	ek, err := desc.passwordKey()
	if err != nil {
		return nil, err
	}

	secretKey, err := ek.unlock(password)
	if err != nil {
		return nil, err
	}
	return decryptPackage(&desc.KeyData, secretKey, pkg)
}

// unlock verifies password and returns the package key.
func (ek *encryptedKey) unlock(password string) ([]byte, error) {
	newHash, err := hashFunc(ek.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	salt, err := base64.StdEncoding.DecodeString(ek.SaltValue)
	if err != nil {
		return nil, fmt.Errorf("invalid key salt: %w", err)
	}
	fields := map[string]string{
		"encryptedVerifierHashInput": ek.EncryptedVerifierHashInput,
		"encryptedVerifierHashValue": ek.EncryptedVerifierHashValue,
		"encryptedKeyValue":          ek.EncryptedKeyValue,
	}
	raw := make(map[string][]byte, len(fields))
	for name, v := range fields {
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		raw[name] = b
	}

	pwHash, err := passwordHash(newHash, salt, password, ek.SpinCount)
	if err != nil {
		return nil, err
	}
	keyLen := ek.KeyBits / 8
	iv := fixLength(salt, ek.BlockSize, 0x36)

	verifierInput, err := aesCBCDecrypt(deriveKey(newHash, pwHash, blockKeyVerifierInput, keyLen), iv, raw["encryptedVerifierHashInput"])
	if err != nil {
		return nil, err
	}
	verifierHash, err := aesCBCDecrypt(deriveKey(newHash, pwHash, blockKeyVerifierHash, keyLen), iv, raw["encryptedVerifierHashValue"])
	if err != nil {
		return nil, err
	}

	h := newHash()
	h.Write(fixLength(verifierInput, ek.SaltSize, 0))
	expected := h.Sum(nil)
	if len(verifierHash) < len(expected) || subtle.ConstantTimeCompare(expected, verifierHash[:len(expected)]) != 1 {
		return nil, ErrWrongPassword
	}

	keyValue, err := aesCBCDecrypt(deriveKey(newHash, pwHash, blockKeyKeyValue, keyLen), iv, raw["encryptedKeyValue"])
	if err != nil {
		return nil, err
	}
	if len(keyValue) < keyLen {
		return nil, fmt.Errorf("decrypted key too short: %d bytes", len(keyValue))
	}
	return keyValue[:keyLen], nil
}

func decryptPackage(kd *keyData, key, pkg []byte) ([]byte, error) {
	if len(pkg) < 8 {
		return nil, fmt.Errorf("EncryptedPackage too short")
	}
	newHash, err := hashFunc(kd.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	salt, err := base64.StdEncoding.DecodeString(kd.SaltValue)
	if err != nil {
		return nil, fmt.Errorf("invalid package salt: %w", err)
	}

	size := binary.LittleEndian.Uint64(pkg[:8])
	payload := pkg[8:]
	out := make([]byte, 0, len(payload))

	var idx [4]byte
	for i := 0; len(payload) > 0; i++ {
		n := segmentLength
		if n > len(payload) {
			n = len(payload)
		}
		binary.LittleEndian.PutUint32(idx[:], uint32(i))
		h := newHash()
		h.Write(salt)
		h.Write(idx[:])
		iv := fixLength(h.Sum(nil), kd.BlockSize, 0x36)

		plain, err := aesCBCDecrypt(key, iv, payload[:n])
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		out = append(out, plain...)
		payload = payload[n:]
	}

	if uint64(len(out)) < size {
		return nil, fmt.Errorf("decrypted package shorter than declared size (%d < %d)", len(out), size)
	}
	return out[:size], nil
}

// passwordHash computes H(salt+password) iterated spinCount times.
func passwordHash(newHash func() hash.Hash, salt []byte, password string, spinCount int) ([]byte, error) {
	pw, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to encode password: %w", err)
	}

	h := newHash()
	h.Write(salt)
	h.Write(pw)
	sum := h.Sum(nil)

	var iter [4]byte
	for i := 0; i < spinCount; i++ {
		binary.LittleEndian.PutUint32(iter[:], uint32(i))
		h.Reset()
		h.Write(iter[:])
		h.Write(sum)
		sum = h.Sum(sum[:0])
	}
	return sum, nil
}

func deriveKey(newHash func() hash.Hash, pwHash, blockKey []byte, keyLen int) []byte {
	h := newHash()
	h.Write(pwHash)
	h.Write(blockKey)
	return fixLength(h.Sum(nil), keyLen, 0x36)
}

// fixLength truncates b to n bytes or pads it with pad.
func fixLength(b []byte, n int, pad byte) []byte {
	out := make([]byte, n)
	copied := copy(out, b)
	for i := copied; i < n; i++ {
		out[i] = pad
	}
	return out
}

func aesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncryption, err)
	}
	if len(data)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(data))
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("%w: block size %d", ErrUnsupportedEncryption, len(iv))
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func hashFunc(name string) (func() hash.Hash, error) {
	switch name {
	case "SHA1", "SHA-1":
		return sha1.New, nil
	case "SHA256", "SHA-256":
		return sha256.New, nil
	case "SHA384", "SHA-384":
		return sha512.New384, nil
	case "SHA512", "SHA-512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: hash algorithm %q", ErrUnsupportedEncryption, name)
	}
}
