package ntag424

import "fmt"

// ConfigurationUpdate is a tagged sum of the five SetConfiguration (0x5C)
// option groups. Exactly one field is meaningful per value; construct with
// one of the NewXxxConfiguration helpers.
type ConfigurationUpdate struct {
	variant configVariant
	picc    piccConfig
	sdm     sdmConfig
	cap     capabilityConfig
	failCtr authFailCounterConfig
	hw      hardwareConfig
}

type configVariant int

const (
	configPicc configVariant = iota
	configSdm
	configCapability
	configAuthFailCounter
	configHardware
)

type piccConfig struct {
	useRandomID bool
}

type sdmConfig struct {
	disableChainedWrite bool
}

type capabilityConfig struct {
	enableLRP bool
	pdCap2_5  byte
	pdCap2_6  byte
}

type authFailCounterConfig struct {
	enabled bool
	limit   uint16
	decr    uint16
}

type hardwareConfig struct {
	strongBackModulation bool
}

// NewPiccConfiguration builds the Picc option group. useRandomID must be
// true; the card has no other supported mode.
func NewPiccConfiguration(useRandomID bool) (ConfigurationUpdate, error) {
	if !useRandomID {
		return ConfigurationUpdate{}, fmt.Errorf("%w: picc config requires use_random_id=true", ErrValidation)
	}
	return ConfigurationUpdate{variant: configPicc, picc: piccConfig{useRandomID: true}}, nil
}

// NewSdmConfiguration builds the Sdm option group.
func NewSdmConfiguration(disableChainedWrite bool) ConfigurationUpdate {
	return ConfigurationUpdate{variant: configSdm, sdm: sdmConfig{disableChainedWrite: disableChainedWrite}}
}

// NewCapabilityConfiguration builds the Capability option group.
func NewCapabilityConfiguration(enableLRP bool, pdCap2_5, pdCap2_6 byte) ConfigurationUpdate {
	return ConfigurationUpdate{variant: configCapability, cap: capabilityConfig{enableLRP: enableLRP, pdCap2_5: pdCap2_5, pdCap2_6: pdCap2_6}}
}

// NewAuthFailCounterConfiguration builds the AuthFailCounter option group.
// When enabled, limit and decr must each be in (0, 0xFFFF].
func NewAuthFailCounterConfiguration(enabled bool, limit, decr uint16) (ConfigurationUpdate, error) {
	if enabled {
		if limit == 0 || decr == 0 {
			return ConfigurationUpdate{}, fmt.Errorf("%w: auth fail counter limit and decr must be in (0,0xFFFF]", ErrValidation)
		}
	}
	return ConfigurationUpdate{variant: configAuthFailCounter, failCtr: authFailCounterConfig{enabled: enabled, limit: limit, decr: decr}}, nil
}

// NewHardwareConfiguration builds the Hardware option group. backModulation
// must be "strong" or "normal".
func NewHardwareConfiguration(backModulation string) (ConfigurationUpdate, error) {
	switch backModulation {
	case "strong":
		return ConfigurationUpdate{variant: configHardware, hw: hardwareConfig{strongBackModulation: true}}, nil
	case "normal":
		return ConfigurationUpdate{variant: configHardware, hw: hardwareConfig{strongBackModulation: false}}, nil
	default:
		return ConfigurationUpdate{}, fmt.Errorf("%w: back_modulation %q", ErrValidation, backModulation)
	}
}

// serialize produces the (header, data) pair the SetConfiguration codec
// sends for this variant.
func (c ConfigurationUpdate) serialize() (header byte, data []byte) {
	switch c.variant {
	case configPicc:
		return 0x00, []byte{0x02}
	case configSdm:
		b := byte(0x00)
		if c.sdm.disableChainedWrite {
			b = 0x04
		}
		return 0x04, []byte{0x00, b}
	case configCapability:
		lrp := byte(0x00)
		if c.cap.enableLRP {
			lrp = 0x02
		}
		return 0x05, []byte{0, 0, 0, 0, lrp, 0, 0, 0, c.cap.pdCap2_5, c.cap.pdCap2_6}
	case configAuthFailCounter:
		if !c.failCtr.enabled {
			return 0x0A, []byte{0, 0, 0, 0, 0}
		}
		limit, decr := c.failCtr.limit, c.failCtr.decr
		return 0x0A, []byte{0x01, byte(limit), byte(limit >> 8), byte(decr), byte(decr >> 8)}
	case configHardware:
		b := byte(0x00)
		if c.hw.strongBackModulation {
			b = 0x01
		}
		return 0x0B, []byte{b}
	default:
		return 0, nil
	}
}

// SetConfiguration issues SetConfiguration (native 0x5C) under CommMode
// Full, which it always requires.
func SetConfiguration(card Card, sess *Session, update ConfigurationUpdate) error {
	header, data := update.serialize()
	resp, err := Send(card, sess, 0x5C, []byte{header}, data, CommModeFull)
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return &CardError{Cmd: 0x5C, SW: resp.Status}
	}
	return nil
}
