package ntag424

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/aead/cmac"
)

// ErrMalformedPadding is returned when CBC plaintext is missing the
// ISO 9797-1 method 2 0x80 marker.
var ErrMalformedPadding = errors.New("ntag424: malformed padding")

// ErrLengthMismatch is returned by xorBytes when operands differ in length.
var ErrLengthMismatch = errors.New("ntag424: length mismatch")

func aesCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	if len(data)%16 != 0 {
		return nil, fmt.Errorf("CBC encrypt: data not block aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	if len(data)%16 != 0 {
		return nil, fmt.Errorf("CBC decrypt: data not block aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func aesECBEncrypt(key, blockIn []byte) ([]byte, error) {
	if len(blockIn) != 16 {
		return nil, fmt.Errorf("ECB input must be 16 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	block.Encrypt(out, blockIn)
	return out, nil
}

// padISO9797M2 appends 0x80 then zero-pads to the next 16-byte boundary.
// A full padding block is added when data is already aligned.
func padISO9797M2(data []byte) []byte {
	padLen := 16 - (len(data) % 16)
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	out[len(data)] = 0x80
	return out
}

// unpadISO9797M2 locates the last 0x80 byte and truncates at it.
func unpadISO9797M2(data []byte) ([]byte, error) {
	idx := len(data) - 1
	for idx >= 0 && data[idx] != 0x80 {
		idx--
	}
	if idx < 0 {
		return nil, ErrMalformedPadding
	}
	return data[:idx], nil
}

func rotateLeft1(in []byte) []byte {
	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	copy(out, in[1:])
	out[len(in)-1] = in[0]
	return out
}

func rotateRight1(in []byte) []byte {
	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	out[0] = in[len(in)-1]
	copy(out[1:], in[:len(in)-1])
	return out
}

// xorBytes XORs a and b, which must have equal length.
func xorBytes(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, ErrLengthMismatch
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}

// aesCMAC computes the full 16-byte AES-CMAC of msg under key, per NIST
// SP 800-38B, via the aead/cmac implementation.
func aesCMAC(key, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cmac.Sum(msg, block, block.BlockSize())
}

// reduceMAC truncates a 16-byte CMAC to the 8 bytes at odd indices
// (1,3,5,...,15), per AN12196 p.21.
func reduceMAC(full []byte) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = full[1+i*2]
	}
	return out
}

// constantTimeEqual reports whether a and b are equal, in constant time.
func constantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}

// jamCRC32 computes JAMCRC (bitwise-NOT of CRC-32/ISO-HDLC) of data.
func jamCRC32(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}
