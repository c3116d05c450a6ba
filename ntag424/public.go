package ntag424

import "fmt"

// Tag is the public session surface: a card paired with its secure
// messaging session. Native commands go through Send (C4); GetUID,
// SelectFile and the unauthenticated read/write paths transmit their ISO or
// plain frames directly. Callers never build frames by hand.
type Tag struct {
	Card    Card
	Session *Session
}

// NewTag pairs a card with a fresh, unauthenticated session.
func NewTag(card Card) *Tag {
	return &Tag{Card: card, Session: NewSession()}
}

// Authenticate runs AuthenticateEV2First against keyNo, installing the
// resulting AuthState on the tag's session.
func (t *Tag) Authenticate(key []byte, keyNo byte) error {
	return AuthenticateEV2First(t.Card, t.Session, key, keyNo)
}

// IsAuthenticated reports whether the tag's session currently holds an
// AuthState.
func (t *Tag) IsAuthenticated() bool {
	return t.Session.IsAuthenticated()
}

// AuthenticateWithFallback tries key against keyNo, then altKeyNo, then slot
// 0, then the all-zero factory key, returning the key/slot that succeeded.
// Useful against a tag whose provisioning state is unknown.
func (t *Tag) AuthenticateWithFallback(key []byte, keyNo, altKeyNo byte) ([]byte, byte, error) {
	return AuthenticateWithFallback(t.Card, t.Session, key, keyNo, altKeyNo)
}

// GetUID issues the reader-level ISO 7816 GET DATA command (FF CA 00 00 00)
// and returns all bytes preceding the status word. This is the PC/SC
// anticollision UID, not a DESFire native command.
func (t *Tag) GetUID() ([]byte, error) {
	apdu := []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
	data, sw, err := Transmit(t.Card, apdu)
	if err != nil {
		return nil, err
	}
	if !SwOK(sw) {
		return nil, &SWError{Cmd: 0xCA, SW: sw}
	}
	return data, nil
}

// GetCardUID returns the 7-byte tag UID via DESFire GetCardUID (native
// INS 0x51), under the given CommMode. Unlike GetUID, this is a card-level
// command and requires prior authentication.
func (t *Tag) GetCardUID(mode CommMode) ([]byte, error) {
	resp, err := Send(t.Card, t.Session, 0x51, nil, nil, mode)
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, &CardError{Cmd: 0x51, SW: resp.Status}
	}
	if len(resp.Data) != 7 {
		return nil, fmt.Errorf("%w: GetCardUID response length %d", ErrMalformedResponse, len(resp.Data))
	}
	return resp.Data, nil
}

// SelectFile selects an ISO 7816 file by its 16-bit ID. This invalidates
// any active authentication; the tag's session is reset to unauthenticated
// to reflect that.
func (t *Tag) SelectFile(fileID uint16) error {
	if err := SelectFile(t.Card, fileID); err != nil {
		return err
	}
	t.Session = NewSession()
	return nil
}

// ReadStandardFile reads length bytes at offset from fileNo, using
// CommModeFull if authenticated and CommModePlain otherwise.
func (t *Tag) ReadStandardFile(fileNo byte, offset, length int) ([]byte, error) {
	if t.IsAuthenticated() {
		return ReadFileDataSecure(t.Card, t.Session, fileNo, offset, length)
	}
	return ReadFileDataPlain(t.Card, fileNo, offset, length)
}

// WriteStandardFile writes data at offset to fileNo, using CommModeFull if
// authenticated and CommModePlain otherwise.
func (t *Tag) WriteStandardFile(fileNo byte, offset int, data []byte) error {
	if t.IsAuthenticated() {
		return WriteFileDataSecure(t.Card, t.Session, fileNo, offset, data)
	}
	return WriteFileDataPlain(t.Card, fileNo, offset, data)
}

// GetFileSettings retrieves file settings for fileNo under the given
// CommMode (Plain or Mac; Mac without a session is sent as Plain).
func (t *Tag) GetFileSettings(fileNo byte, mode CommMode) (*GetFileSettingsResult, error) {
	return GetFileSettings(t.Card, t.Session, fileNo, mode)
}

// SetFileSettings applies new file settings to fileNo.
func (t *Tag) SetFileSettings(fileNo byte, fs *FileSettings, tp TagParams) error {
	return SetFileSettings(t.Card, t.Session, fileNo, fs, tp)
}

// SetConfiguration issues a SetConfiguration option group.
func (t *Tag) SetConfiguration(update ConfigurationUpdate) error {
	return SetConfiguration(t.Card, t.Session, update)
}

// GetKeyVersion returns the version byte currently associated with
// keyNumber via DESFire GetKeyVersion (native INS 0x64).
func (t *Tag) GetKeyVersion(keyNumber byte) (byte, error) {
	resp, err := Send(t.Card, t.Session, 0x64, []byte{keyNumber}, nil, CommModeMac)
	if err != nil {
		return 0, err
	}
	if !resp.IsOK() {
		return 0, &CardError{Cmd: 0x64, SW: resp.Status}
	}
	if len(resp.Data) != 1 {
		return 0, fmt.Errorf("%w: GetKeyVersion response length %d", ErrMalformedResponse, len(resp.Data))
	}
	return resp.Data[0], nil
}

// GetFileCounters returns the SDM read counter for fileNo via DESFire
// GetFileCounters (native INS 0xF6), under CommModeFull. The response must
// be exactly 5 bytes: a 3-byte little-endian counter followed by two
// reserved bytes that must be zero.
func (t *Tag) GetFileCounters(fileNo byte) (uint32, error) {
	resp, err := Send(t.Card, t.Session, 0xF6, []byte{fileNo}, nil, CommModeFull)
	if err != nil {
		return 0, err
	}
	if !resp.IsOK() {
		return 0, &CardError{Cmd: 0xF6, SW: resp.Status}
	}
	if len(resp.Data) != 5 {
		return 0, fmt.Errorf("%w: GetFileCounters response length %d", ErrMalformedResponse, len(resp.Data))
	}
	if resp.Data[3] != 0x00 || resp.Data[4] != 0x00 {
		return 0, fmt.Errorf("%w: GetFileCounters reserved bytes %02X%02X", ErrRfuNonZero, resp.Data[3], resp.Data[4])
	}
	return readU24le(resp.Data, 0), nil
}

// ChangeKey changes keyNumber, JAMCRC32-checksumming newKey per AN12196.
func (t *Tag) ChangeKey(keyNumber byte, oldKey, newKey []byte, newKeyVersion byte) error {
	return ChangeKey(t.Card, t.Session, keyNumber, oldKey, newKey, newKeyVersion)
}

// ChangeKeySame re-keys the PICC master key (slot 0) without an old key.
func (t *Tag) ChangeKeySame(newKey []byte, newKeyVersion byte) error {
	return ChangeKeySame(t.Card, t.Session, newKey, newKeyVersion)
}

// WriteData is an alias for WriteStandardFile kept for parity with the
// DESFire WriteData command name used elsewhere in the package.
func (t *Tag) WriteData(fileNo byte, offset int, data []byte) error {
	return t.WriteStandardFile(fileNo, offset, data)
}
