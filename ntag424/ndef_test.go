package ntag424

import (
	"strings"
	"testing"
)

func TestBuildSDMNDEFOffsetsLocateThePlaceholders(t *testing.T) {
	sdmNDEF, err := BuildSDMNDEF("https://example.com/tap")
	if err != nil {
		t.Fatalf("BuildSDMNDEF: %v", err)
	}

	if got, want := string(sdmNDEF.NDEF[sdmNDEF.UIDOffset:sdmNDEF.UIDOffset+sdmUIDLenASCII]), strings.Repeat("0", sdmUIDLenASCII); got != want {
		t.Fatalf("UID placeholder at offset = %q, want %q", got, want)
	}
	if got, want := string(sdmNDEF.NDEF[sdmNDEF.CtrOffset:sdmNDEF.CtrOffset+sdmCtrLenASCII]), strings.Repeat("0", sdmCtrLenASCII); got != want {
		t.Fatalf("counter placeholder at offset = %q, want %q", got, want)
	}
	if got, want := string(sdmNDEF.NDEF[sdmNDEF.MacOffset:sdmNDEF.MacOffset+sdmMacLenASCII]), strings.Repeat("0", sdmMacLenASCII); got != want {
		t.Fatalf("MAC placeholder at offset = %q, want %q", got, want)
	}
	if got, want := string(sdmNDEF.NDEF[sdmNDEF.MacInputOffset:sdmNDEF.MacInputOffset+4]), "uid="; got != want {
		t.Fatalf("MAC input offset does not point at %q, got %q", want, got)
	}
	if !strings.HasPrefix(sdmNDEF.URL, "https://example.com/tap?uid=") {
		t.Fatalf("URL = %q, want uid to be the first query param", sdmNDEF.URL)
	}
}

func TestBuildSDMNDEFRejectsRelativeURL(t *testing.T) {
	if _, err := BuildSDMNDEF("/not-absolute"); err == nil {
		t.Fatal("expected an error for a non-absolute URL")
	}
}

func TestBuildSDMNDEFPreservesURLPrefixEncoding(t *testing.T) {
	sdmNDEF, err := BuildSDMNDEF("https://www.example.com/tap")
	if err != nil {
		t.Fatalf("BuildSDMNDEF: %v", err)
	}
	if sdmNDEF.NDEF[6] != 0x02 {
		t.Fatalf("URI prefix code = %#02x, want 0x02 (https://www.)", sdmNDEF.NDEF[6])
	}
}
