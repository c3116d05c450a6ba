package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/internal/prompt"
	"github.com/barnettlynn/nfctools/ntag424"
)

func newChangeKeyCmd() *cobra.Command {
	var (
		authKeyFile string
		authKeyNo   uint8
		targetKeyNo uint8
		oldKeyFile  string
		newKeyFile  string
		newVersion  uint8
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "change-key",
		Short: "Change one key slot on the tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			authKey, err := loadKey(authKeyFile)
			if err != nil {
				return err
			}
			oldKey, err := loadKey(oldKeyFile)
			if err != nil {
				return err
			}
			newKey, err := loadKey(newKeyFile)
			if err != nil {
				return err
			}

			if !yes && !prompt.Confirm(fmt.Sprintf("change key slot %d", targetKeyNo)) {
				return fmt.Errorf("aborted")
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
			if err := tag.Authenticate(authKey, authKeyNo); err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
			if err := tag.ChangeKey(targetKeyNo, oldKey, newKey, newVersion); err != nil {
				return fmt.Errorf("change key: %w", err)
			}
			fmt.Printf("key slot %d changed\n", targetKeyNo)
			return nil
		},
	}
	cmd.Flags().StringVar(&authKeyFile, "auth-key-file", "", "path to the key used to authenticate")
	cmd.Flags().Uint8Var(&authKeyNo, "auth-key-no", 0, "key slot to authenticate with")
	cmd.Flags().Uint8Var(&targetKeyNo, "target-key-no", 0, "key slot to change")
	cmd.Flags().StringVar(&oldKeyFile, "old-key-file", "", "path to the current value of the target key (ignored when target-key-no is 0)")
	cmd.Flags().StringVar(&newKeyFile, "new-key-file", "", "path to the new key value")
	cmd.Flags().Uint8Var(&newVersion, "new-version", 0, "version byte to stamp on the new key")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.MarkFlagRequired("new-key-file")
	return cmd
}
