package ntag424

import "fmt"

// FileAccessRights holds the four independent 4-bit access fields. Each is
// a key index 0..=4, 0xE ("free"), or 0xF ("never").
type FileAccessRights struct {
	Read      byte
	Write     byte
	ReadWrite byte
	Change    byte
}

// SDMAccessRights holds the three 4-bit SDM access fields. FileRead is
// restricted to a key index or 0xF.
type SDMAccessRights struct {
	MetaRead          byte
	FileRead          byte
	CounterRetrieval  byte
}

// EncryptedFileData describes the optional encrypted-file-data mirror slice.
type EncryptedFileData struct {
	Offset uint32
	Length uint32
}

// SdmOptions holds the optional offsets into the standard data file that
// Secure Dynamic Messaging mirrors into, plus the SDM access rights that
// govern which offsets are present.
type SdmOptions struct {
	Access             SDMAccessRights
	UIDOffset          *uint32
	ReadCounterOffset  *uint32
	PICCDataOffset     *uint32
	MACInputOffset     *uint32
	MACOffset          *uint32
	EncryptedFileData  *EncryptedFileData
	ReadCounterLimit   *uint32
	// EncodingMode is "ascii"; it is the only permitted value.
	EncodingMode string
}

// FileSettings is the serializable core of a file's settings: its
// CommMode, its FileAccessRights, and optional SdmOptions.
type FileSettings struct {
	SDMOptions *SdmOptions
	CommMode   CommMode
	Access     FileAccessRights
}

// GetFileSettingsResult is a FileSettings enriched with the fields the
// GetFileSettings response carries but ChangeFileSettings does not accept.
type GetFileSettingsResult struct {
	FileSettings
	FileType byte
	FileSize uint32
}

// TagParams carries the physical file layout needed to validate SdmOptions
// offset fields.
type TagParams struct {
	FileSize                 uint32
	EncodedUIDLength         uint32
	EncodedReadCounterLength uint32
	PICCDataLength           uint32
}

func rangeCheck(field string, v, lo, hi int64) error {
	if v < lo || v >= hi {
		return fmt.Errorf("%w: %s=%d out of range [%d,%d)", ErrValidation, field, v, lo, hi)
	}
	return nil
}

// SerializeFileSettings builds the ChangeFileSettings (0x5F) payload for fs,
// validating every cross-field rule against tp.
func SerializeFileSettings(fs *FileSettings, tp TagParams) ([]byte, error) {
	if !fs.CommMode.IsValid() {
		return nil, fmt.Errorf("%w: comm mode %v", ErrUnsupportedVariant, fs.CommMode)
	}

	fileOption := byte(fs.CommMode)
	sdmPresent := fs.SDMOptions != nil
	if sdmPresent {
		fileOption |= 0x40
	}
	accessPart1 := (fs.Access.ReadWrite << 4) | fs.Access.Change
	accessPart2 := (fs.Access.Read << 4) | fs.Access.Write

	out := []byte{fileOption, accessPart1, accessPart2}
	if !sdmPresent {
		return out, nil
	}

	sdm := fs.SDMOptions
	if sdm.EncodingMode != "" && sdm.EncodingMode != "ascii" {
		return nil, fmt.Errorf("%w: sdm encoding mode %q", ErrUnsupportedVariant, sdm.EncodingMode)
	}

	var intSdmOptions byte
	if sdm.UIDOffset != nil {
		intSdmOptions |= 0x80
	}
	if sdm.ReadCounterOffset != nil {
		intSdmOptions |= 0x40
	}
	if sdm.ReadCounterLimit != nil {
		intSdmOptions |= 0x20
	}
	if sdm.EncryptedFileData != nil {
		intSdmOptions |= 0x10
	}
	intSdmOptions |= 0x01 // encoding == ascii

	sdmAccessLow := byte(0xF0 | (sdm.Access.CounterRetrieval & 0x0F))
	sdmAccessHigh := (sdm.Access.MetaRead << 4) | sdm.Access.FileRead
	out = append(out, intSdmOptions, sdmAccessLow, sdmAccessHigh)

	fileSize := int64(tp.FileSize)

	switch sdm.Access.MetaRead {
	case 0x0E:
		if sdm.UIDOffset != nil {
			if err := rangeCheck("uid_offset", int64(*sdm.UIDOffset), 0, fileSize-int64(tp.EncodedUIDLength)); err != nil {
				return nil, err
			}
			out = append(out, u24le(*sdm.UIDOffset)...)
		}
		if sdm.ReadCounterOffset != nil {
			if err := rangeCheck("read_counter_offset", int64(*sdm.ReadCounterOffset), 0, fileSize-int64(tp.EncodedReadCounterLength)); err != nil {
				return nil, err
			}
			out = append(out, u24le(*sdm.ReadCounterOffset)...)
		}
	case 0x0F:
		if sdm.PICCDataOffset != nil {
			return nil, fmt.Errorf("%w: picc_data_offset forbidden when meta_read is denied", ErrValidation)
		}
	default:
		if sdm.Access.MetaRead > 0x04 {
			return nil, fmt.Errorf("%w: meta_read=%#x is neither a key index, 0xE, nor 0xF", ErrValidation, sdm.Access.MetaRead)
		}
		if sdm.PICCDataOffset == nil {
			return nil, fmt.Errorf("%w: picc_data_offset required when meta_read is a key index", ErrValidation)
		}
		if err := rangeCheck("picc_data_offset", int64(*sdm.PICCDataOffset), 0, fileSize-int64(tp.PICCDataLength)); err != nil {
			return nil, err
		}
		out = append(out, u24le(*sdm.PICCDataOffset)...)
	}

	if sdm.Access.FileRead != 0x0F {
		if sdm.MACInputOffset == nil || sdm.MACOffset == nil {
			return nil, fmt.Errorf("%w: mac_input_offset and mac_offset required when file_read != 0xF", ErrValidation)
		}
		macIn := int64(*sdm.MACInputOffset)
		macOff := int64(*sdm.MACOffset)
		if err := rangeCheck("mac_input_offset", macIn, 0, macOff+1); err != nil {
			return nil, err
		}
		out = append(out, u24le(*sdm.MACInputOffset)...)

		if sdm.EncryptedFileData != nil {
			enc := sdm.EncryptedFileData
			encOff, encLen := int64(enc.Offset), int64(enc.Length)
			if err := rangeCheck("encrypted_file_data.offset", encOff, macIn, macOff-32); err != nil {
				return nil, err
			}
			if encLen%32 != 0 {
				return nil, fmt.Errorf("%w: encrypted_file_data.length must be a multiple of 32", ErrValidation)
			}
			if err := rangeCheck("encrypted_file_data.length", encLen, 32, macOff-encOff); err != nil {
				return nil, err
			}
			out = append(out, u24le(enc.Offset)...)
			out = append(out, u24le(enc.Length)...)
			if macOff <= encOff+encLen || macOff >= fileSize-16 {
				return nil, fmt.Errorf("%w: mac_offset=%d out of range (%d,%d)", ErrValidation, macOff, encOff+encLen, fileSize-16)
			}
		} else {
			if err := rangeCheck("mac_offset", macOff, macIn, fileSize-16); err != nil {
				return nil, err
			}
		}
		out = append(out, u24le(*sdm.MACOffset)...)
	}

	if sdm.ReadCounterLimit != nil {
		out = append(out, u24le(*sdm.ReadCounterLimit)...)
	}

	return out, nil
}

// ParseFileSettings decodes a GetFileSettings (0xF5) response, mirroring
// SerializeFileSettings's presence rules exactly.
func ParseFileSettings(data []byte) (*GetFileSettingsResult, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("%w: file settings shorter than 7 bytes", ErrMalformedResponse)
	}

	fileType := data[0]
	if fileType != 0 {
		return nil, fmt.Errorf("%w: unsupported file type %#x", ErrUnsupportedVariant, fileType)
	}

	fileOption := data[1]
	if fileOption&0x3C != 0 {
		return nil, fmt.Errorf("%w: RFU bits set in fileOption %#02x", ErrValidation, fileOption)
	}
	commMode := CommMode(fileOption & 0x03)
	if !commMode.IsValid() {
		return nil, fmt.Errorf("%w: comm mode encoding %#02b", ErrUnsupportedVariant, byte(commMode))
	}
	sdmPresent := fileOption&0x40 != 0

	ar1, ar2 := data[2], data[3]
	access := FileAccessRights{
		ReadWrite: (ar1 >> 4) & 0x0F,
		Change:    ar1 & 0x0F,
		Read:      (ar2 >> 4) & 0x0F,
		Write:     ar2 & 0x0F,
	}
	fileSize := readU24le(data, 4)

	result := &GetFileSettingsResult{
		FileType: fileType,
		FileSize: fileSize,
		FileSettings: FileSettings{
			CommMode: commMode,
			Access:   access,
		},
	}

	idx := 7
	if !sdmPresent {
		if idx != len(data) {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedResponse, len(data)-idx)
		}
		return result, nil
	}

	if len(data) < idx+3 {
		return nil, fmt.Errorf("%w: missing SDM options/access bytes", ErrMalformedResponse)
	}
	sdmOptionsByte := data[idx]
	sdmAccessLow := data[idx+1]
	sdmAccessHigh := data[idx+2]
	idx += 3

	sdm := &SdmOptions{
		Access: SDMAccessRights{
			MetaRead:         (sdmAccessHigh >> 4) & 0x0F,
			FileRead:         sdmAccessHigh & 0x0F,
			CounterRetrieval: sdmAccessLow & 0x0F,
		},
		EncodingMode: "ascii",
	}

	switch sdm.Access.MetaRead {
	case 0x0E:
		if sdmOptionsByte&0x80 != 0 {
			if len(data) < idx+3 {
				return nil, fmt.Errorf("%w: missing uid_offset", ErrMalformedResponse)
			}
			v := readU24le(data, idx)
			sdm.UIDOffset = &v
			idx += 3
		}
		if sdmOptionsByte&0x40 != 0 {
			if len(data) < idx+3 {
				return nil, fmt.Errorf("%w: missing read_counter_offset", ErrMalformedResponse)
			}
			v := readU24le(data, idx)
			sdm.ReadCounterOffset = &v
			idx += 3
		}
	case 0x0F:
		// no picc_data_offset
	default:
		if sdm.Access.MetaRead > 0x04 {
			return nil, fmt.Errorf("%w: meta_read=%#x is neither a key index, 0xE, nor 0xF", ErrValidation, sdm.Access.MetaRead)
		}
		if len(data) < idx+3 {
			return nil, fmt.Errorf("%w: missing picc_data_offset", ErrMalformedResponse)
		}
		v := readU24le(data, idx)
		sdm.PICCDataOffset = &v
		idx += 3
	}

	if sdm.Access.FileRead != 0x0F {
		if len(data) < idx+3 {
			return nil, fmt.Errorf("%w: missing mac_input_offset", ErrMalformedResponse)
		}
		v := readU24le(data, idx)
		sdm.MACInputOffset = &v
		idx += 3

		if sdmOptionsByte&0x10 != 0 {
			if len(data) < idx+6 {
				return nil, fmt.Errorf("%w: missing encrypted_file_data offset/length", ErrMalformedResponse)
			}
			sdm.EncryptedFileData = &EncryptedFileData{
				Offset: readU24le(data, idx),
				Length: readU24le(data, idx+3),
			}
			idx += 6
		}

		if len(data) < idx+3 {
			return nil, fmt.Errorf("%w: missing mac_offset", ErrMalformedResponse)
		}
		v2 := readU24le(data, idx)
		sdm.MACOffset = &v2
		idx += 3
	}

	if sdmOptionsByte&0x20 != 0 {
		if len(data) < idx+3 {
			return nil, fmt.Errorf("%w: missing read_counter_limit", ErrMalformedResponse)
		}
		v := readU24le(data, idx)
		sdm.ReadCounterLimit = &v
		idx += 3
	}

	if idx != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedResponse, len(data)-idx)
	}

	result.SDMOptions = sdm
	return result, nil
}

func readU24le(data []byte, offset int) uint32 {
	return uint32(data[offset]) | uint32(data[offset+1])<<8 | uint32(data[offset+2])<<16
}

func u24le(v uint32) []byte {
	return []byte{byte(v & 0xFF), byte((v >> 8) & 0xFF), byte((v >> 16) & 0xFF)}
}

// GetFileSettings issues GetFileSettings (0xF5) under the given CommMode
// (Plain or Full; Mac behaves like Plain without a session) and parses the
// response.
func GetFileSettings(card Card, sess *Session, fileNo byte, mode CommMode) (*GetFileSettingsResult, error) {
	resp, err := Send(card, sess, 0xF5, []byte{fileNo}, nil, mode)
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, &CardError{Cmd: 0xF5, SW: resp.Status}
	}
	return ParseFileSettings(resp.Data)
}

// SetFileSettings issues ChangeFileSettings (0x5F) with fs serialized
// against tp, under Full if sess is authenticated, Plain otherwise.
func SetFileSettings(card Card, sess *Session, fileNo byte, fs *FileSettings, tp TagParams) error {
	data, err := SerializeFileSettings(fs, tp)
	if err != nil {
		return err
	}
	mode := CommModePlain
	if sess.IsAuthenticated() {
		mode = CommModeFull
	}
	resp, err := Send(card, sess, 0x5F, []byte{fileNo}, data, mode)
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return &CardError{Cmd: 0x5F, SW: resp.Status}
	}
	return nil
}
