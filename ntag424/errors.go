package ntag424

import (
	"errors"
	"fmt"
)

// Error taxonomy. These are sentinel values; call sites wrap them with
// fmt.Errorf("...: %w", ErrXxx) and callers classify with errors.Is.
var (
	// ErrTransport is raised by the reader port. Never mutates session state.
	ErrTransport = errors.New("ntag424: transport error")
	// ErrMalformedResponse covers responses shorter than 2 bytes, or an
	// unexpected length for a fixed-layout reply.
	ErrMalformedResponse = errors.New("ntag424: malformed response")
	// ErrAuthMismatch means the RndA round-trip failed; transient, caller may retry.
	ErrAuthMismatch = errors.New("ntag424: RndA mismatch")
	// ErrResponseMacMismatch is security-fatal: the caller must not trust any data
	// returned alongside it.
	ErrResponseMacMismatch = errors.New("ntag424: response MAC mismatch")
	// ErrNotAuthenticated means CommMode Full was attempted without an installed session.
	ErrNotAuthenticated = errors.New("ntag424: not authenticated")
	// ErrValidation covers a range or invariant violation in codec inputs.
	ErrValidation = errors.New("ntag424: validation error")
	// ErrUnsupportedVariant covers an unknown CommMode encoding, file type, or encoding mode.
	ErrUnsupportedVariant = errors.New("ntag424: unsupported variant")
	// ErrRfuNonZero means a reserved-for-future-use field in a fixed-layout
	// reply was non-zero, e.g. GetFileCounters' trailing two bytes.
	ErrRfuNonZero = errors.New("ntag424: reserved field non-zero")
)

// Status word constants for ISO 7816 and DESFire responses
const (
	// ISO 7816 status words
	SWSuccess              = 0x9000 // ISO success
	SWSecurityNotSatisfied = 0x6982 // Security status not satisfied (need auth)
	SWFileNotFound         = 0x6A82 // File not found
	SWWrongP1P2            = 0x6A86 // Incorrect P1/P2 parameters
	SWWrongLength          = 0x6700 // Wrong length
	SWWrongLe              = 0x6C00 // Wrong Le (mask: 0x6C00, correct Le in SW2)

	// DESFire status words
	SWDESFireOK     = 0x9100 // DESFire success (operation complete)
	SWMoreData      = 0x91AF // Additional frame expected
	SWLengthError   = 0x917E // Length error (wrong Le, bad fileNo, or format error)
	SWAuthError     = 0x91AE // Authentication error (wrong key for slot)
	SWPermDenied    = 0x919D // Permission denied (authenticated but insufficient rights)
	SWParameterErr  = 0x919E // Parameter error (invalid settings data)
	SWBoundaryError = 0x911C // Command not allowed / boundary error (read past file end)
	SWNoChanges     = 0x9140 // No changes (settings already match)
	SWCommandAbort  = 0x91CA // Command aborted (general failure)
)

// CardError represents a status word error from the card: status word not
// in the OK set, carrying the two status bytes.
type CardError struct {
	Cmd byte   // Command INS byte
	SW  uint16 // Status word
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card command 0x%02X failed with SW=0x%04X (%s)", e.Cmd, e.SW, swDescription(e.SW))
}

// SWError is an alias kept for the CardError shape used by the reference
// card commands; SWError and CardError describe the same failure.
type SWError = CardError

// swDescription returns a human-readable description of a status word.
func swDescription(sw uint16) string {
	switch sw {
	case SWSuccess:
		return "success"
	case SWDESFireOK:
		return "DESFire OK"
	case SWMoreData:
		return "more data expected"
	case SWLengthError:
		return "length error"
	case SWAuthError:
		return "authentication error"
	case SWPermDenied:
		return "permission denied"
	case SWParameterErr:
		return "parameter error"
	case SWBoundaryError:
		return "boundary error"
	case SWNoChanges:
		return "no changes"
	case SWCommandAbort:
		return "command aborted"
	case SWSecurityNotSatisfied:
		return "security not satisfied"
	case SWFileNotFound:
		return "file not found"
	case SWWrongP1P2:
		return "wrong P1/P2"
	case SWWrongLength:
		return "wrong length"
	default:
		if (sw & 0xFF00) == SWWrongLe {
			return fmt.Sprintf("wrong Le (correct Le=%d)", sw&0xFF)
		}
		return "unknown error"
	}
}

// IsLengthError checks if an error is a length-related status word error.
func IsLengthError(err error) bool {
	var swErr *CardError
	if errors.As(err, &swErr) {
		return swErr.SW == SWLengthError || swErr.SW == SWWrongLength || (swErr.SW&0xFF00) == SWWrongLe
	}
	return false
}

// IsAuthError checks if an error is an authentication-related status word error.
func IsAuthError(err error) bool {
	var swErr *CardError
	if errors.As(err, &swErr) {
		return swErr.SW == SWAuthError || swErr.SW == SWSecurityNotSatisfied
	}
	return false
}

// IsBoundaryError checks if an error is a boundary error (read past file end).
func IsBoundaryError(err error) bool {
	var swErr *CardError
	if errors.As(err, &swErr) {
		return swErr.SW == SWBoundaryError
	}
	return false
}

// IsPermissionDenied checks if an error is a permission denied error.
func IsPermissionDenied(err error) bool {
	var swErr *CardError
	if errors.As(err, &swErr) {
		return swErr.SW == SWPermDenied
	}
	return false
}

// SwOK checks if a status word indicates success (ISO 9000 or DESFire 9100).
func SwOK(sw uint16) bool {
	return sw == SWSuccess || sw == SWDESFireOK
}

// isOKStatus implements the spec's is_ok predicate: SW1 in {0x90,0x91} and
// SW2 in {0x00,0xAF}.
func isOKStatus(sw uint16) bool {
	sw1 := byte(sw >> 8)
	sw2 := byte(sw)
	if sw1 != 0x90 && sw1 != 0x91 {
		return false
	}
	return sw2 == 0x00 || sw2 == 0xAF
}
