package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/ntag424"
)

func newWriteCmd() *cobra.Command {
	var (
		keyFile string
		keyNo   uint8
		fileNo  uint8
		offset  int
		dataHex string
		ndef    bool
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write hex-encoded bytes to a standard data file, or the NDEF message, on the tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(dataHex)
			if err != nil {
				return fmt.Errorf("--data is not valid hex: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := connect(*cfg.Runtime.ReaderIndex)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("select NDEF app: %w", err)
			}
			tag := ntag424.NewTag(conn)
			if keyFile != "" {
				key, err := loadKey(keyFile)
				if err != nil {
					return err
				}
				if err := tag.Authenticate(key, keyNo); err != nil {
					return fmt.Errorf("authenticate: %w", err)
				}
			}

			if ndef {
				if keyFile != "" {
					// The session from the Authenticate call above is still
					// live; WriteNDEFWithAuth selects the NDEF file without
					// re-selecting the app, which would drop it.
					return ntag424.WriteNDEFWithAuth(conn, data)
				}
				return ntag424.WriteNDEFPlain(conn, data)
			}
			return tag.WriteStandardFile(fileNo, offset, data)
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the write key .hex file (omit for a plain write)")
	cmd.Flags().Uint8Var(&keyNo, "key-no", 0, "key slot to authenticate with")
	cmd.Flags().Uint8Var(&fileNo, "file", 0x02, "file number to write")
	cmd.Flags().IntVar(&offset, "offset", 0, "byte offset within the file")
	cmd.Flags().StringVar(&dataHex, "data", "", "hex-encoded bytes to write")
	cmd.Flags().BoolVar(&ndef, "ndef", false, "write the NDEF message instead of a standard data file")
	cmd.MarkFlagRequired("data")
	return cmd
}
