package ntag424

import "fmt"

// accessLabel returns a human-readable label for an access rights nibble.
func accessLabel(keyNo byte) string {
	switch keyNo {
	case 0x0E:
		return "free            (no key needed)"
	case 0x0F:
		return "denied          (never)"
	default:
		return fmt.Sprintf("Key slot %d", keyNo)
	}
}

// PrintFileSettings prints file settings in a human-readable format.
//
// Parameters:
//   - label: Descriptive label (e.g., "BEFORE", "AFTER")
//   - fileNo: File number (0x01, 0x02, 0x03)
//   - fs: GetFileSettingsResult structure
func PrintFileSettings(label string, fileNo byte, fs *GetFileSettingsResult) {
	a := fs.Access
	fmt.Printf("  %s - File %d access rights:    [comm mode: %s]\n", label, fileNo, fs.CommMode)
	fmt.Printf("    Read data:        %s\n", accessLabel(a.Read))
	fmt.Printf("    Write data:       %s\n", accessLabel(a.Write))
	fmt.Printf("    Read+Write:       %s\n", accessLabel(a.ReadWrite))
	fmt.Printf("    Change settings:  %s\n", accessLabel(a.Change))

	if fs.SDMOptions == nil {
		fmt.Println("  SDM config:                         [disabled]")
		return
	}
	sdm := fs.SDMOptions
	fmt.Printf("  SDM config:                         [enabled]\n")
	fmt.Printf("    Meta read:        %s\n", accessLabel(sdm.Access.MetaRead))
	fmt.Printf("    File read (MAC):  %s\n", accessLabel(sdm.Access.FileRead))
	fmt.Printf("    Counter read:     %s\n", accessLabel(sdm.Access.CounterRetrieval))
	if sdm.PICCDataOffset != nil {
		fmt.Printf("    PICC data offset: %d\n", *sdm.PICCDataOffset)
	}
	if sdm.MACInputOffset != nil {
		fmt.Printf("    MAC input offset: %d\n", *sdm.MACInputOffset)
	}
	if sdm.MACOffset != nil {
		fmt.Printf("    MAC offset:       %d\n", *sdm.MACOffset)
	}
	if sdm.EncryptedFileData != nil {
		fmt.Printf("    Encrypted data:   offset=%d length=%d\n", sdm.EncryptedFileData.Offset, sdm.EncryptedFileData.Length)
	}
	if sdm.ReadCounterLimit != nil {
		fmt.Printf("    Read counter limit: %d\n", *sdm.ReadCounterLimit)
	}
}
