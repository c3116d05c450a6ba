package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/ntag424"
)

func newSettingsCmd() *cobra.Command {
	get := &cobra.Command{
		Use:   "get-settings",
		Short: "Print a file's access rights and SDM configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileNo, _ := cmd.Flags().GetUint8("file")
			keyFile, _ := cmd.Flags().GetString("key-file")
			keyNo, _ := cmd.Flags().GetUint8("key-no")
			commModeName, _ := cmd.Flags().GetString("comm-mode")

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
			mode := ntag424.CommModePlain
			if keyFile != "" {
				key, err := loadKey(keyFile)
				if err != nil {
					return err
				}
				if err := tag.Authenticate(key, keyNo); err != nil {
					return fmt.Errorf("authenticate: %w", err)
				}
				mode = ntag424.CommModeMac
			}
			if commModeName != "" {
				parsed, ok := ntag424.ParseCommMode(commModeName)
				if !ok {
					return fmt.Errorf("--comm-mode must be one of plain, mac, full (got %q)", commModeName)
				}
				mode = parsed
			}
			fs, err := tag.GetFileSettings(fileNo, mode)
			if err != nil {
				return err
			}
			ntag424.PrintFileSettings("", fileNo, fs)
			return nil
		},
	}
	get.Flags().Uint8("file", 0x02, "file number")
	get.Flags().String("key-file", "", "path to the change-access-rights key .hex file (omit for a plain/free read)")
	get.Flags().Uint8("key-no", 0, "key slot to authenticate with")
	get.Flags().String("comm-mode", "", "override the GetFileSettings communication mode (plain, mac, full); default: plain when unauthenticated, mac when authenticated")
	return get
}
