package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/internal/prompt"
	"github.com/barnettlynn/nfctools/ntag424"
)

func newResetCmd() *cobra.Command {
	var (
		appMasterKeyFile string
		sdmKeyFile       string
		writeKeyFile     string
		yes              bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a provisioned tag's keys and file settings back to factory defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			appMasterKey, err := loadKey(appMasterKeyFile)
			if err != nil {
				return err
			}
			sdmKey, err := loadKey(sdmKeyFile)
			if err != nil {
				return err
			}
			writeKey, err := loadKey(writeKeyFile)
			if err != nil {
				return err
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

			tag := ntag424.NewTag(conn)
			uid, err := tag.GetUID()
			if err != nil {
				return fmt.Errorf("get UID: %w", err)
			}
			uidHex := strings.ToUpper(hex.EncodeToString(uid))
			fmt.Printf("tag UID: %s\n", uidHex)

			if !yes && !prompt.Confirm(fmt.Sprintf("reset tag %s to factory defaults", uidHex)) {
				return fmt.Errorf("aborted")
			}

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("select NDEF app: %w", err)
			}
			tag = ntag424.NewTag(conn)
			zeroKey := make([]byte, 16)
			authKey, _, err := tag.AuthenticateWithFallback(appMasterKey, 0x00, 0x00)
			if err != nil {
				return fmt.Errorf("authenticate (tried app master key and factory zeros): %w", err)
			}

			freeFS := &ntag424.FileSettings{
				CommMode: ntag424.CommModePlain,
				Access: ntag424.FileAccessRights{
					Read:      0x0E,
					Write:     0x0E,
					ReadWrite: 0x00,
					Change:    0x00,
				},
			}
			if err := tag.SetFileSettings(0x02, freeFS, ntag424.TagParams{FileSize: 256}); err != nil {
				return fmt.Errorf("open file 2 for clearing: %w", err)
			}
			if err := tag.WriteStandardFile(0x02, 0, []byte{0x00, 0x00}); err != nil {
				fmt.Printf("warning: could not clear NDEF: %v\n", err)
			}

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("re-select NDEF app: %w", err)
			}
			tag = ntag424.NewTag(conn)
			if err := tag.Authenticate(authKey, 0x00); err != nil {
				return fmt.Errorf("re-authenticate: %w", err)
			}

			if err := tag.ChangeKey(0x01, sdmKey, zeroKey, 0x00); err != nil {
				return fmt.Errorf("reset SDM key (slot 1): %w", err)
			}
			if err := tag.ChangeKey(0x02, writeKey, zeroKey, 0x00); err != nil {
				return fmt.Errorf("reset write key (slot 2): %w", err)
			}
			if err := tag.ChangeKeySame(zeroKey, 0x00); err != nil {
				return fmt.Errorf("reset app master key (slot 0): %w", err)
			}

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("re-select NDEF app for settings restore: %w", err)
			}
			tag = ntag424.NewTag(conn)
			if err := tag.Authenticate(zeroKey, 0x00); err != nil {
				return fmt.Errorf("re-authenticate with factory key: %w", err)
			}

			factoryFS := &ntag424.FileSettings{
				CommMode: ntag424.CommModePlain,
				Access: ntag424.FileAccessRights{
					Read:      0x0E,
					Write:     0x0E,
					ReadWrite: 0x00,
					Change:    0x00,
				},
			}
			ccFS := *factoryFS
			ccFS.Access.Write = 0x00
			if err := tag.SetFileSettings(0x01, &ccFS, ntag424.TagParams{FileSize: 32}); err != nil {
				return fmt.Errorf("restore file 1 settings: %w", err)
			}
			if err := tag.SetFileSettings(0x02, factoryFS, ntag424.TagParams{FileSize: 256}); err != nil {
				return fmt.Errorf("restore file 2 settings: %w", err)
			}

			fmt.Println("reset complete: keys and file settings restored to factory defaults")
			return nil
		},
	}
	cmd.Flags().StringVar(&appMasterKeyFile, "app-master-key", "", "path to the current app master key (slot 0) .hex file")
	cmd.Flags().StringVar(&sdmKeyFile, "sdm-key", "", "path to the current SDM key (slot 1) .hex file")
	cmd.Flags().StringVar(&writeKeyFile, "write-key", "", "path to the current write key (slot 2) .hex file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.MarkFlagRequired("app-master-key")
	cmd.MarkFlagRequired("sdm-key")
	cmd.MarkFlagRequired("write-key")
	return cmd
}
