package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/ntag424"
)

func newConfigureCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "configure",
		Short: "Apply a SetConfiguration option group to the tag",
	}
	root.AddCommand(newConfigurePiccCmd())
	root.AddCommand(newConfigureAuthFailCounterCmd())
	root.AddCommand(newConfigureHardwareCmd())
	return root
}

func openTag(keyFile string, keyNo uint8) (*ntag424.Connection, *ntag424.Tag, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := connect(*cfg.Runtime.ReaderIndex)
	if err != nil {
		return nil, nil, err
	}
	if err := ntag424.SelectNDEFApp(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("select NDEF app: %w", err)
	}
	tag := ntag424.NewTag(conn)
	key, err := loadKey(keyFile)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := tag.Authenticate(key, keyNo); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("authenticate: %w", err)
	}
	return conn, tag, nil
}

func newConfigurePiccCmd() *cobra.Command {
	var keyFile string
	var keyNo uint8
	var randomID bool
	cmd := &cobra.Command{
		Use:   "picc",
		Short: "Enable random ID rotation on the PICC",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, tag, err := openTag(keyFile, keyNo)
			if err != nil {
				return err
			}
			defer conn.Close()
			update, err := ntag424.NewPiccConfiguration(randomID)
			if err != nil {
				return err
			}
			return tag.SetConfiguration(update)
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the app master key .hex file")
	cmd.Flags().Uint8Var(&keyNo, "key-no", 0, "key slot to authenticate with")
	cmd.Flags().BoolVar(&randomID, "random-id", true, "enable random ID rotation (must be true)")
	return cmd
}

func newConfigureAuthFailCounterCmd() *cobra.Command {
	var (
		keyFile string
		keyNo   uint8
		enabled bool
		limit   uint16
		decr    uint16
	)
	cmd := &cobra.Command{
		Use:   "auth-fail-counter",
		Short: "Configure the authentication failure counter and lockout threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, tag, err := openTag(keyFile, keyNo)
			if err != nil {
				return err
			}
			defer conn.Close()
			update, err := ntag424.NewAuthFailCounterConfiguration(enabled, limit, decr)
			if err != nil {
				return err
			}
			return tag.SetConfiguration(update)
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the app master key .hex file")
	cmd.Flags().Uint8Var(&keyNo, "key-no", 0, "key slot to authenticate with")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable the authentication failure counter")
	cmd.Flags().Uint16Var(&limit, "limit", 0, "maximum consecutive authentication failures before lockout")
	cmd.Flags().Uint16Var(&decr, "decrement", 0, "counter decrement per failure")
	return cmd
}

func newConfigureHardwareCmd() *cobra.Command {
	var (
		keyFile        string
		keyNo          uint8
		backModulation string
	)
	cmd := &cobra.Command{
		Use:   "hardware",
		Short: "Select strong or normal back-modulation mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, tag, err := openTag(keyFile, keyNo)
			if err != nil {
				return err
			}
			defer conn.Close()
			update, err := ntag424.NewHardwareConfiguration(backModulation)
			if err != nil {
				return err
			}
			return tag.SetConfiguration(update)
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the app master key .hex file")
	cmd.Flags().Uint8Var(&keyNo, "key-no", 0, "key slot to authenticate with")
	cmd.Flags().StringVar(&backModulation, "back-modulation", "normal", "back modulation mode: strong or normal")
	return cmd
}
