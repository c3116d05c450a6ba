package ntag424

import "testing"

type scriptedVersionCard struct {
	calls int
}

func (c *scriptedVersionCard) Transmit(apdu []byte) ([]byte, error) {
	c.calls++
	switch c.calls {
	case 1:
		return append([]byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, 0x91, 0xAF), nil
	case 2:
		return append([]byte{0x04, 0x01, 0x01, 0x00, 0x00, 0x05, 0x06}, 0x91, 0xAF), nil
	case 3:
		body := append([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}...)
		body = append(body, 0x09, 0x23)
		return append(body, 0x91, 0x00), nil
	default:
		return []byte{0x91, 0x1E}, nil
	}
}

func TestGetVersionParsesThreePartResponse(t *testing.T) {
	card := &scriptedVersionCard{}
	v, err := GetVersion(card)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v.HWVendorID != 0x04 || v.HWMajorVer != 0x03 || v.HWMinorVer != 0x04 {
		t.Fatalf("unexpected HW fields: %+v", v)
	}
	if v.SWVendorID != 0x04 || v.SWMajorVer != 0x00 || v.SWMinorVer != 0x00 {
		t.Fatalf("unexpected SW fields: %+v", v)
	}
	wantUID := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}
	for i, b := range wantUID {
		if v.UID[i] != b {
			t.Fatalf("UID = %x, want %x", v.UID, wantUID)
		}
	}
	if v.FabKey != 0x09 {
		t.Fatalf("FabKey = %#02x, want 0x09", v.FabKey)
	}
	if v.ProdYear != 0x02 || v.ProdWeek != 0x03 {
		t.Fatalf("ProdYear/Week = %d/%d, want 2/3", v.ProdYear, v.ProdWeek)
	}
}

func TestGetVersionRejectsShortFirstPart(t *testing.T) {
	card := &recordingCard{sw: SWMoreData}
	if _, err := GetVersion(card); err == nil {
		t.Fatal("expected an error for a too-short part-1 response")
	}
}
