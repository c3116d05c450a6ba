package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/ntag424"
)

func newReadCmd() *cobra.Command {
	var (
		keyFile string
		keyNo   uint8
		fileNo  uint8
		offset  int
		length  int
		ndef    bool
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a standard data file, or the NDEF message, from the tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := connect(*cfg.Runtime.ReaderIndex)
			if err != nil {
				return err
			}
			defer conn.Close()

			if ndef {
				if err := ntag424.SelectNDEFApp(conn); err != nil {
					return err
				}
				data, err := ntag424.ReadNDEF(conn)
				if err != nil {
					return err
				}
				fmt.Println(hex.EncodeToString(data))
				return nil
			}

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
			data, err := tag.ReadStandardFile(fileNo, offset, length)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the read key .hex file (omit for a plain read)")
	cmd.Flags().Uint8Var(&keyNo, "key-no", 0, "key slot to authenticate with")
	cmd.Flags().Uint8Var(&fileNo, "file", 0x02, "file number to read")
	cmd.Flags().IntVar(&offset, "offset", 0, "byte offset within the file")
	cmd.Flags().IntVar(&length, "length", 32, "number of bytes to read")
	cmd.Flags().BoolVar(&ndef, "ndef", false, "read the NDEF message instead of a standard data file")
	return cmd
}
