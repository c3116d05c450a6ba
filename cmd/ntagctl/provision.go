package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/internal/prompt"
	"github.com/barnettlynn/nfctools/ntag424"
)

const (
	provisionNDEFFileNo = 0x02
	provisionSDMKeyNo   = 0x01
	provisionWriteKeyNo = 0x02
	provisionMasterKeyNo = 0x00
)

func newProvisionCmd() *cobra.Command {
	var (
		appMasterKeyFile string
		sdmKeyFile       string
		writeKeyFile     string
		baseURL          string
		yes              bool
	)
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision a factory-fresh tag: set new keys and configure Secure Dynamic Messaging",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Flags override the config file; fall back to config for any
			// field left unset on the command line.
			if appMasterKeyFile != "" {
				cfg.Keys.AppMasterKeyFile = appMasterKeyFile
			}
			if sdmKeyFile != "" {
				cfg.Keys.SDMKeyFile = sdmKeyFile
			}
			if writeKeyFile != "" {
				cfg.Keys.File2WriteKeyFile = writeKeyFile
			}
			if baseURL != "" {
				cfg.URL = baseURL
			}
			fileNo := provisionNDEFFileNo
			sdmKeyNo := provisionSDMKeyNo
			if cfg.SDM.FileNo == nil {
				cfg.SDM.FileNo = &fileNo
			}
			if cfg.SDM.SDMKeyNo == nil {
				cfg.SDM.SDMKeyNo = &sdmKeyNo
			}
			if err := cfg.ValidateForProvision(); err != nil {
				return err
			}
			baseURL = cfg.URL

			appMasterKey, err := loadKey(cfg.Keys.AppMasterKeyFile)
			if err != nil {
				return err
			}
			sdmKey, err := loadKey(cfg.Keys.SDMKeyFile)
			if err != nil {
				return err
			}
			writeKey, err := loadKey(cfg.Keys.File2WriteKeyFile)
			if err != nil {
				return err
			}

			conn, err := connect(*cfg.Runtime.ReaderIndex)
			if err != nil {
				return err
			}
			defer conn.Close()

			uidTag := ntag424.NewTag(conn)
			uid, err := uidTag.GetUID()
			if err != nil {
				return fmt.Errorf("get UID: %w", err)
			}
			fmt.Printf("tag UID: %s\n", strings.ToUpper(hex.EncodeToString(uid)))

			if !yes && !prompt.Confirm(fmt.Sprintf("provision tag %s with new keys", strings.ToUpper(hex.EncodeToString(uid)))) {
				return fmt.Errorf("aborted")
			}

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("select NDEF app: %w", err)
			}
			tag := ntag424.NewTag(conn)
			zeroKey := make([]byte, 16)
			if err := tag.Authenticate(zeroKey, provisionMasterKeyNo); err != nil {
				return fmt.Errorf("authenticate with factory key: %w", err)
			}

			if err := tag.ChangeKey(provisionSDMKeyNo, zeroKey, sdmKey, 0x01); err != nil {
				return fmt.Errorf("change SDM key (slot %d): %w", provisionSDMKeyNo, err)
			}
			if err := tag.ChangeKey(provisionWriteKeyNo, zeroKey, writeKey, 0x01); err != nil {
				return fmt.Errorf("change write key (slot %d): %w", provisionWriteKeyNo, err)
			}
			if err := tag.ChangeKey(provisionMasterKeyNo, zeroKey, appMasterKey, 0x01); err != nil {
				return fmt.Errorf("change app master key (slot %d): %w", provisionMasterKeyNo, err)
			}

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("re-select NDEF app: %w", err)
			}
			tag = ntag424.NewTag(conn)
			if err := tag.Authenticate(appMasterKey, provisionMasterKeyNo); err != nil {
				return fmt.Errorf("re-authenticate with app master key: %w", err)
			}

			sdmNDEF, err := ntag424.BuildSDMNDEF(baseURL)
			if err != nil {
				return fmt.Errorf("build SDM NDEF: %w", err)
			}

			offUID := sdmNDEF.UIDOffset
			offCtr := sdmNDEF.CtrOffset
			offMAC := sdmNDEF.MacOffset
			offMACInput := sdmNDEF.MacInputOffset
			fs := &ntag424.FileSettings{
				CommMode: ntag424.CommModePlain,
				Access: ntag424.FileAccessRights{
					Read:      0x0E,
					Write:     provisionWriteKeyNo,
					ReadWrite: provisionWriteKeyNo,
					Change:    provisionMasterKeyNo,
				},
				SDMOptions: &ntag424.SdmOptions{
					Access: ntag424.SDMAccessRights{
						MetaRead:         0x0E,
						FileRead:         provisionSDMKeyNo,
						CounterRetrieval: provisionSDMKeyNo,
					},
					UIDOffset:         &offUID,
					ReadCounterOffset: &offCtr,
					MACInputOffset:    &offMACInput,
					MACOffset:         &offMAC,
					EncodingMode:      "ascii",
				},
			}
			tp := ntag424.TagParams{FileSize: 256}
			if err := tag.SetFileSettings(provisionNDEFFileNo, fs, tp); err != nil {
				return fmt.Errorf("configure SDM file settings: %w", err)
			}

			if err := tag.WriteStandardFile(provisionNDEFFileNo, 0, sdmNDEF.NDEF); err != nil {
				return fmt.Errorf("write NDEF: %w", err)
			}

			fmt.Println("provisioning complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&appMasterKeyFile, "app-master-key", "", "path to the new app master key (slot 0) .hex file (overrides config.keys.app_master_key_hex_file)")
	cmd.Flags().StringVar(&sdmKeyFile, "sdm-key", "", "path to the new SDM key (slot 1) .hex file (overrides config.keys.sdm_key_hex_file)")
	cmd.Flags().StringVar(&writeKeyFile, "write-key", "", "path to the new write key (slot 2) .hex file (overrides config.keys.file2_write_key_hex_file)")
	cmd.Flags().StringVar(&baseURL, "url", "", "base URL the SDM NDEF record will point to (overrides config.url)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
