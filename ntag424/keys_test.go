package ntag424

import (
	"bytes"
	"testing"
)

// recordingCard captures the last APDU it was given and always answers with
// a bare status word (no body), which is sufficient to exercise CommModeFull
// requests whose response carries no payload (e.g. ChangeKey).
type recordingCard struct {
	lastAPDU []byte
	sw       uint16
}

func (c *recordingCard) Transmit(apdu []byte) ([]byte, error) {
	c.lastAPDU = append([]byte{}, apdu...)
	return []byte{byte(c.sw >> 8), byte(c.sw)}, nil
}

func newTestSession(t *testing.T, keyNo byte) (*Session, []byte) {
	t.Helper()
	sess := NewSession()
	sesEncKey := bytes.Repeat([]byte{0x11}, 16)
	sess.auth = &AuthState{KeyNo: keyNo}
	copy(sess.auth.SesEncKey[:], sesEncKey)
	copy(sess.auth.SesMacKey[:], bytes.Repeat([]byte{0x22}, 16))
	copy(sess.auth.TI[:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	return sess, sesEncKey
}

// decryptCommandData extracts and decrypts the data portion of a CommModeFull
// native APDU built by sendFull/sendMac, given the session state at the time
// the command was built (cmdCtr before Send's post-transmit increment).
func decryptCommandData(t *testing.T, apdu []byte, sesEncKey []byte, ti [4]byte, cmdCtr uint16) []byte {
	t.Helper()
	// apdu = [CLA, INS, P1, P2, Lc, header(1 byte keyNumber), encData..., mac(8 bytes), Le]
	if len(apdu) < 4+1+1+8+1 {
		t.Fatalf("apdu too short: %d bytes", len(apdu))
	}
	lc := int(apdu[4])
	payload := apdu[5 : 5+lc]
	encData := payload[1 : len(payload)-8] // skip header byte, trailing MAC

	ivIn := make([]byte, 16)
	ivIn[0], ivIn[1] = 0xA5, 0x5A
	copy(ivIn[2:6], ti[:])
	ivIn[6], ivIn[7] = byte(cmdCtr&0xFF), byte(cmdCtr>>8)
	iv, err := aesECBEncrypt(sesEncKey, ivIn)
	if err != nil {
		t.Fatalf("aesECBEncrypt: %v", err)
	}
	plain, err := aesCBCDecrypt(sesEncKey, iv, encData)
	if err != nil {
		t.Fatalf("aesCBCDecrypt: %v", err)
	}
	unpadded, err := unpadISO9797M2(plain)
	if err != nil {
		t.Fatalf("unpadISO9797M2: %v", err)
	}
	return unpadded
}

func TestChangeKeyCrossSlotPayloadShape(t *testing.T) {
	sess, sesEncKey := newTestSession(t, 0x00)
	card := &recordingCard{sw: SWDESFireOK}

	oldKey := bytes.Repeat([]byte{0xAA}, 16)
	newKey := bytes.Repeat([]byte{0xBB}, 16)
	if err := ChangeKey(card, sess, 0x01, oldKey, newKey, 0x05); err != nil {
		t.Fatalf("ChangeKey: %v", err)
	}

	got := decryptCommandData(t, card.lastAPDU, sesEncKey, sess.auth.TI, 0)
	xored, err := xorBytes(oldKey, newKey)
	if err != nil {
		t.Fatalf("xorBytes: %v", err)
	}
	crc := jamCRC32(newKey)
	want := append(append([]byte{}, xored...), 0x05, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	if !bytes.Equal(got, want) {
		t.Fatalf("ChangeKey payload = %x, want %x", got, want)
	}
	if !sess.IsAuthenticated() {
		t.Fatal("changing a different slot must not invalidate the session")
	}
}

func TestChangeKeyOwnSlotInvalidatesSession(t *testing.T) {
	sess, sesEncKey := newTestSession(t, 0x00)
	card := &recordingCard{sw: SWDESFireOK}

	newKey := bytes.Repeat([]byte{0xCC}, 16)
	if err := ChangeKey(card, sess, 0x00, nil, newKey, 0x01); err != nil {
		t.Fatalf("ChangeKey: %v", err)
	}

	got := decryptCommandData(t, card.lastAPDU, sesEncKey, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, 0)
	want := append(append([]byte{}, newKey...), 0x01)
	if !bytes.Equal(got, want) {
		t.Fatalf("ChangeKey(self) payload = %x, want %x", got, want)
	}
	if sess.IsAuthenticated() {
		t.Fatal("changing the authenticated key's own slot must invalidate the session")
	}
}

func TestChangeKeyRejectsWrongLengthKeys(t *testing.T) {
	sess, _ := newTestSession(t, 0x00)
	card := &recordingCard{sw: SWDESFireOK}

	if err := ChangeKey(card, sess, 0x01, bytes.Repeat([]byte{0}, 16), []byte{0x01, 0x02}, 0x00); err == nil {
		t.Fatal("expected an error for a short new key")
	}
	if err := ChangeKey(card, sess, 0x01, []byte{0x01}, bytes.Repeat([]byte{0}, 16), 0x00); err == nil {
		t.Fatal("expected an error for a short old key")
	}
}

func TestChangeKeySameMatchesOwnSlotChangeKey(t *testing.T) {
	sess, sesEncKey := newTestSession(t, 0x00)
	card := &recordingCard{sw: SWDESFireOK}

	newKey := bytes.Repeat([]byte{0xEE}, 16)
	if err := ChangeKeySame(card, sess, newKey, 0x07); err != nil {
		t.Fatalf("ChangeKeySame: %v", err)
	}

	got := decryptCommandData(t, card.lastAPDU, sesEncKey, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, 0)
	want := append(append([]byte{}, newKey...), 0x07)
	if !bytes.Equal(got, want) {
		t.Fatalf("ChangeKeySame payload = %x, want %x", got, want)
	}
	if sess.IsAuthenticated() {
		t.Fatal("ChangeKeySame must invalidate the session like ChangeKey(0x00, ...) does")
	}
}

func TestChangeKeyRequiresAuthentication(t *testing.T) {
	sess := NewSession()
	card := &recordingCard{sw: SWDESFireOK}
	newKey := bytes.Repeat([]byte{0xDD}, 16)
	err := ChangeKey(card, sess, 0x01, bytes.Repeat([]byte{0}, 16), newKey, 0x00)
	if err != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
