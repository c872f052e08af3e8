package officecrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func padBlock(b []byte) []byte {
	if rem := len(b) % aes.BlockSize; rem != 0 {
		b = append(b, make([]byte, aes.BlockSize-rem)...)
	}
	return b
}

func encryptCBC(t *testing.T, key, iv, data []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	data = padBlock(append([]byte(nil), data...))
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out
}

// encryptAgile produces EncryptionInfo and EncryptedPackage streams for payload.
func encryptAgile(t *testing.T, payload []byte, password, hashAlg string, spinCount int) (info, pkg []byte) {
	t.Helper()
	newHash, err := hashFunc(hashAlg)
	require.NoError(t, err)
	hashSize := newHash().Size()
	const keyBits, blockSize, saltSize = 256, 16, 16

	keySalt := randomBytes(t, saltSize)
	dataSalt := randomBytes(t, saltSize)
	secretKey := randomBytes(t, keyBits/8)
	verifierInput := randomBytes(t, saltSize)

	pwHash, err := passwordHash(newHash, keySalt, password, spinCount)
	require.NoError(t, err)
	iv := fixLength(keySalt, blockSize, 0x36)

	h := newHash()
	h.Write(verifierInput)
	verifierHash := h.Sum(nil)

	encVI := encryptCBC(t, deriveKey(newHash, pwHash, blockKeyVerifierInput, keyBits/8), iv, verifierInput)
	encVH := encryptCBC(t, deriveKey(newHash, pwHash, blockKeyVerifierHash, keyBits/8), iv, verifierHash)
	encKV := encryptCBC(t, deriveKey(newHash, pwHash, blockKeyKeyValue, keyBits/8), iv, secretKey)

	var sizeHeader [8]byte
	binary.LittleEndian.PutUint64(sizeHeader[:], uint64(len(payload)))
	pkg = append(pkg, sizeHeader[:]...)
	var idx [4]byte
	for i := 0; i*segmentLength < len(payload); i++ {
		end := (i + 1) * segmentLength
		if end > len(payload) {
			end = len(payload)
		}
		binary.LittleEndian.PutUint32(idx[:], uint32(i))
		h := newHash()
		h.Write(dataSalt)
		h.Write(idx[:])
		segIV := fixLength(h.Sum(nil), blockSize, 0x36)
		pkg = append(pkg, encryptCBC(t, secretKey, segIV, payload[i*segmentLength:end])...)
	}

	b64 := base64.StdEncoding.EncodeToString
	descriptor := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<encryption xmlns="http://schemas.microsoft.com/office/2006/encryption" xmlns:p="http://schemas.microsoft.com/office/2006/keyEncryptor/password">
<keyData saltSize="%[1]d" blockSize="%[2]d" keyBits="%[3]d" hashSize="%[4]d" cipherAlgorithm="AES" cipherChaining="ChainingModeCBC" hashAlgorithm="%[5]s" saltValue="%[6]s"/>
<keyEncryptors><keyEncryptor uri="http://schemas.microsoft.com/office/2006/keyEncryptor/password">
<p:encryptedKey spinCount="%[7]d" saltSize="%[1]d" blockSize="%[2]d" keyBits="%[3]d" hashSize="%[4]d" cipherAlgorithm="AES" cipherChaining="ChainingModeCBC" hashAlgorithm="%[5]s" saltValue="%[8]s" encryptedVerifierHashInput="%[9]s" encryptedVerifierHashValue="%[10]s" encryptedKeyValue="%[11]s"/>
</keyEncryptor></keyEncryptors></encryption>`,
		saltSize, blockSize, keyBits, hashSize, hashAlg, b64(dataSalt),
		spinCount, b64(keySalt), b64(encVI), b64(encVH), b64(encKV))

	info = []byte{4, 0, 4, 0, 0x40, 0, 0, 0}
	info = append(info, descriptor...)
	return info, pkg
}

const (
	freeSect   = 0xFFFFFFFF
	endOfChain = 0xFFFFFFFE
	fatSect    = 0xFFFFFFFD
	noStream   = 0xFFFFFFFF
	sectorSize = 512
)

type cfbStream struct {
	name string
	data []byte
}

// buildCFB writes a version 3 compound file with two root level streams.
// Streams must be at least 4096 bytes so they live in regular sectors.
func buildCFB(t *testing.T, a, b cfbStream) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(a.data), 4096)
	require.GreaterOrEqual(t, len(b.data), 4096)

	sectorsFor := func(n int) int { return (n + sectorSize - 1) / sectorSize }
	aStart := uint32(2)
	bStart := aStart + uint32(sectorsFor(len(a.data)))
	total := int(bStart) + sectorsFor(len(b.data))
	require.LessOrEqual(t, total, sectorSize/4)

	le := binary.LittleEndian
	header := make([]byte, sectorSize)
	copy(header, cfbSignature)
	le.PutUint16(header[24:], 0x003E)
	le.PutUint16(header[26:], 0x0003)
	le.PutUint16(header[28:], 0xFFFE)
	le.PutUint16(header[30:], 9)
	le.PutUint16(header[32:], 6)
	le.PutUint32(header[44:], 1) // FAT sectors
	le.PutUint32(header[48:], 1) // first directory sector
	le.PutUint32(header[56:], 4096)
	le.PutUint32(header[60:], endOfChain)
	le.PutUint32(header[68:], endOfChain)
	le.PutUint32(header[76:], 0)
	for i := 1; i < 109; i++ {
		le.PutUint32(header[76+4*i:], freeSect)
	}

	fat := make([]byte, sectorSize)
	for i := 0; i < sectorSize/4; i++ {
		le.PutUint32(fat[4*i:], freeSect)
	}
	le.PutUint32(fat[0:], fatSect)
	le.PutUint32(fat[4:], endOfChain)
	chain := func(start uint32, n int) {
		for i := 0; i < n; i++ {
			next := start + uint32(i) + 1
			if i == n-1 {
				next = endOfChain
			}
			le.PutUint32(fat[4*(int(start)+i):], next)
		}
	}
	chain(aStart, sectorsFor(len(a.data)))
	chain(bStart, sectorsFor(len(b.data)))

	dirEntry := func(name string, typ byte, left, right, child, start uint32, size int) []byte {
		e := make([]byte, 128)
		if name != "" {
			units := utf16.Encode([]rune(name))
			for i, u := range units {
				le.PutUint16(e[2*i:], u)
			}
			le.PutUint16(e[64:], uint16(2*(len(units)+1)))
		}
		e[66] = typ
		e[67] = 1
		le.PutUint32(e[68:], left)
		le.PutUint32(e[72:], right)
		le.PutUint32(e[76:], child)
		le.PutUint32(e[116:], start)
		le.PutUint64(e[120:], uint64(size))
		return e
	}
	var dir []byte
	dir = append(dir, dirEntry("Root Entry", 5, noStream, noStream, 1, endOfChain, 0)...)
	dir = append(dir, dirEntry(a.name, 2, noStream, 2, noStream, aStart, len(a.data))...)
	dir = append(dir, dirEntry(b.name, 2, noStream, noStream, noStream, bStart, len(b.data))...)
	dir = append(dir, dirEntry("", 0, noStream, noStream, noStream, 0, 0)...)

	pad := func(b []byte) []byte {
		out := make([]byte, sectorsFor(len(b))*sectorSize)
		copy(out, b)
		return out
	}

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(fat)
	buf.Write(dir)
	buf.Write(pad(a.data))
	buf.Write(pad(b.data))
	return buf.Bytes()
}

func encryptedContainer(t *testing.T, payload []byte, password string) []byte {
	t.Helper()
	info, pkg := encryptAgile(t, payload, password, "SHA512", 1000)
	// keep EncryptionInfo out of the mini stream
	if len(info) < 4096 {
		info = append(info, strings.Repeat(" ", 4096-len(info))...)
	}
	return buildCFB(t,
		cfbStream{name: streamEncryptionInfo, data: info},
		cfbStream{name: streamEncryptedPackage, data: pkg},
	)
}

func TestDecryptStreams(t *testing.T) {
	for _, alg := range []string{"SHA1", "SHA256", "SHA384", "SHA512"} {
		t.Run(alg, func(t *testing.T) {
			payload := randomBytes(t, 3*segmentLength+123)
			info, pkg := encryptAgile(t, payload, "密碼pass", alg, 50)

			out, err := DecryptStreams(info, pkg, "密碼pass")
			require.NoError(t, err)
			assert.Equal(t, payload, out)

			_, err = DecryptStreams(info, pkg, "wrong")
			assert.ErrorIs(t, err, ErrWrongPassword)
		})
	}
}

func TestDecryptContainer(t *testing.T) {
	payload := append([]byte("PK\x03\x04"), randomBytes(t, 6000)...)
	data := encryptedContainer(t, payload, "secret")

	assert.True(t, IsCFB(data))
	assert.True(t, IsEncrypted(data))

	out, err := Decrypt(data, "secret")
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	_, err = Decrypt(data, "Secret")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestDecryptPlainZip(t *testing.T) {
	data := []byte("PK\x03\x04 not encrypted")
	assert.False(t, IsEncrypted(data))
	_, err := Decrypt(data, "x")
	assert.ErrorIs(t, err, ErrNotEncrypted)
}

func TestParseInfoUnsupported(t *testing.T) {
	// standard encryption header (3.2)
	_, err := DecryptStreams([]byte{3, 0, 2, 0, 0x24, 0, 0, 0}, make([]byte, 16), "x")
	assert.ErrorIs(t, err, ErrUnsupportedEncryption)

	_, err = DecryptStreams([]byte{4, 0}, nil, "x")
	assert.ErrorIs(t, err, ErrUnsupportedEncryption)

	info := []byte{4, 0, 4, 0, 0x40, 0, 0, 0}
	info = append(info, `<encryption><keyData cipherAlgorithm="DES" cipherChaining="ChainingModeCBC"/></encryption>`...)
	_, err = DecryptStreams(info, make([]byte, 16), "x")
	assert.ErrorIs(t, err, ErrUnsupportedEncryption)
}

func TestHashFunc(t *testing.T) {
	_, err := hashFunc("MD5")
	assert.ErrorIs(t, err, ErrUnsupportedEncryption)

	f, err := hashFunc("SHA384")
	require.NoError(t, err)
	assert.Equal(t, 48, f().Size())
}

func TestFixLength(t *testing.T) {
	assert.Equal(t, []byte{1, 2}, fixLength([]byte{1, 2, 3}, 2, 0x36))
	assert.Equal(t, []byte{1, 0x36, 0x36}, fixLength([]byte{1}, 3, 0x36))
}
