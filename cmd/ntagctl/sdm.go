package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/ntag424"
)

func newSDMCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sdm",
		Short: "Validate and emulate Secure Dynamic Messaging tap URLs",
	}
	root.AddCommand(newSDMValidateCmd())
	root.AddCommand(newSDMEmulateCmd())
	return root
}

func newSDMValidateCmd() *cobra.Command {
	var (
		keyFile     string
		fileKeyFile string
	)
	cmd := &cobra.Command{
		Use:   "validate <url>",
		Short: "Validate a tapped SDM URL's signature and print the UID and counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(keyFile)
			if err != nil {
				return err
			}
			uid, counter, ok, err := ntag424.ValidateSDMURL(args[0], key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("signature invalid")
			}
			fmt.Printf("uid=%s counter=%d\n", hex.EncodeToString(uid), counter)

			if fileKeyFile == "" {
				return nil
			}
			_, _, encHex, err := ntag424.ParseSDMURL(args[0])
			if err != nil {
				return err
			}
			if encHex == "" {
				fmt.Println("enc: not present in URL")
				return nil
			}
			encFileData, err := hex.DecodeString(encHex)
			if err != nil {
				return fmt.Errorf("enc hex decode: %w", err)
			}
			fileReadKey, err := loadKey(fileKeyFile)
			if err != nil {
				return err
			}
			counterLE := []byte{byte(counter), byte(counter >> 8), byte(counter >> 16)}
			plain, err := ntag424.DecryptSDMFileData(encFileData, fileReadKey, uid, counterLE)
			if err != nil {
				return fmt.Errorf("decrypt enc file data: %w", err)
			}
			fmt.Printf("enc (decrypted): %s\n", hex.EncodeToString(plain))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the SDM meta-read key .hex file")
	cmd.Flags().StringVar(&fileKeyFile, "file-read-key", "", "path to the SDM file-read key .hex file, to decrypt the optional enc= file-data parameter")
	cmd.MarkFlagRequired("key-file")
	return cmd
}

func newSDMEmulateCmd() *cobra.Command {
	var (
		keyFile string
		uidHex  string
		counter uint32
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Generate an SDM URL for a given UID and counter, as if the tag had been tapped",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(keyFile)
			if err != nil {
				return err
			}
			uid, err := hex.DecodeString(uidHex)
			if err != nil {
				return fmt.Errorf("--uid is not valid hex: %w", err)
			}
			url, err := ntag424.GenerateSDMURL(baseURL, uid, counter, key)
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the SDM meta-read key .hex file")
	cmd.Flags().StringVar(&uidHex, "uid", "", "hex-encoded 7-byte UID")
	cmd.Flags().Uint32Var(&counter, "counter", 0, "read counter value")
	cmd.Flags().StringVar(&baseURL, "url", "", "base URL to attach the encrypted PICC data and MAC to")
	cmd.MarkFlagRequired("key-file")
	cmd.MarkFlagRequired("uid")
	cmd.MarkFlagRequired("url")
	return cmd
}
