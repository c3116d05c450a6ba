package ntag424

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestPadISO9797M2RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAB}, 15),
		bytes.Repeat([]byte{0xCD}, 16),
		bytes.Repeat([]byte{0xEF}, 33),
	}
	for _, in := range cases {
		padded := padISO9797M2(in)
		if len(padded)%16 != 0 {
			t.Fatalf("padded length %d not block aligned for input len %d", len(padded), len(in))
		}
		got, err := unpadISO9797M2(padded)
		if err != nil {
			t.Fatalf("unpad: %v", err)
		}
		if !bytes.Equal(got, in) {
			t.Fatalf("round trip mismatch: got %x want %x", got, in)
		}
	}
}

func TestUnpadISO9797M2Malformed(t *testing.T) {
	_, err := unpadISO9797M2([]byte{0x00, 0x00, 0x00})
	if err != ErrMalformedPadding {
		t.Fatalf("expected ErrMalformedPadding, got %v", err)
	}
}

func TestRotateLeftRight(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03, 0x04}
	left := rotateLeft1(in)
	if !bytes.Equal(left, []byte{0x02, 0x03, 0x04, 0x01}) {
		t.Fatalf("rotateLeft1 = %x", left)
	}
	back := rotateRight1(left)
	if !bytes.Equal(back, in) {
		t.Fatalf("rotateRight1(rotateLeft1(x)) = %x, want %x", back, in)
	}
}

func TestXorBytes(t *testing.T) {
	a := []byte{0xFF, 0x00, 0xAA}
	b := []byte{0x0F, 0xF0, 0x55}
	out, err := xorBytes(a, b)
	if err != nil {
		t.Fatalf("xorBytes: %v", err)
	}
	if !bytes.Equal(out, []byte{0xF0, 0xF0, 0xFF}) {
		t.Fatalf("xorBytes = %x", out)
	}
	if _, err := xorBytes(a, b[:1]); err != ErrLengthMismatch {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestAESCMACDeterministicAndSensitive(t *testing.T) {
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	msg1 := []byte("6bc1bee22e409f96e93d7e117393172a")
	msg2 := []byte("6bc1bee22e409f96e93d7e117393172b")

	a, err := aesCMAC(key, msg1)
	if err != nil {
		t.Fatalf("aesCMAC: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("aesCMAC output length = %d, want 16", len(a))
	}
	b, err := aesCMAC(key, msg1)
	if err != nil {
		t.Fatalf("aesCMAC: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("aesCMAC not deterministic: %x != %x", a, b)
	}
	c, err := aesCMAC(key, msg2)
	if err != nil {
		t.Fatalf("aesCMAC: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("aesCMAC produced identical output for distinct messages")
	}
}

func TestReduceMAC(t *testing.T) {
	full := make([]byte, 16)
	for i := range full {
		full[i] = byte(i)
	}
	got := reduceMAC(full)
	want := []byte{1, 3, 5, 7, 9, 11, 13, 15}
	if !bytes.Equal(got, want) {
		t.Fatalf("reduceMAC = %x, want %x", got, want)
	}
}

func TestJamCRC32(t *testing.T) {
	// JAMCRC of an empty input is the all-ones value.
	if got := jamCRC32(nil); got != 0xFFFFFFFF {
		t.Fatalf("jamCRC32(nil) = %08X, want FFFFFFFF", got)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Fatal("expected equal")
	}
	if constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 4}) {
		t.Fatal("expected not equal")
	}
	if constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2}) {
		t.Fatal("expected length mismatch to be unequal")
	}
}
