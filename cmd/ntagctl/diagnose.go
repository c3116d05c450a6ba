package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/ntag424"
)

func newDiagnoseCmd() *cobra.Command {
	var (
		keyFile string
		keyDir  string
	)
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Try a key (or a directory of keys) against every authentication slot and report which ones accept it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var candidates []ntag424.KeyFile
			if keyDir != "" {
				candidates, err = ntag424.LoadAllHexKeys(keyDir)
				if err != nil {
					return fmt.Errorf("load keys from %s: %w", keyDir, err)
				}
				if len(candidates) == 0 {
					return fmt.Errorf("no .hex key files found in %s", keyDir)
				}
			} else {
				key, err := loadKey(keyFile)
				if err != nil {
					return err
				}
				candidates = []ntag424.KeyFile{{Name: keyFile, Key: key}}
			}

			conn, err := connect(*cfg.Runtime.ReaderIndex)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("select NDEF app: %w", err)
			}

			if v, err := ntag424.GetVersion(conn); err == nil {
				fmt.Printf("UID: %X  HW %d.%d  SW %d.%d  storage 2^%d bytes\n",
					v.UID, v.HWMajorVer, v.HWMinorVer, v.SWMajorVer, v.SWMinorVer, v.HWStorageSize)
			} else {
				fmt.Printf("warning: GetVersion failed: %v\n", err)
			}

			if cc, err := ntag424.ReadCCFile(conn); err == nil {
				fmt.Printf("CC file: %X\n", cc)
			} else {
				fmt.Printf("warning: read CC file failed: %v\n", err)
			}
			// ReadCCFile re-selects the NDEF app as a side effect of selecting
			// file 0xE103; re-select it here so the auth slot probes below
			// start from a clean, known application context.
			if err := ntag424.SelectNDEFApp(conn); err != nil {
				return fmt.Errorf("re-select NDEF app: %w", err)
			}

			slots := make([]byte, 16)
			for i := range slots {
				slots[i] = byte(i)
			}
			for _, kf := range candidates {
				label := kf.Name
				if label == "" {
					label = "(factory default)"
				}
				fmt.Printf("key %s:\n", label)
				results := ntag424.DiagnoseAuthSlots(conn, kf.Key, slots)
				for _, r := range results {
					if r.Success {
						fmt.Printf("  slot %2d: OK\n", r.Slot)
						continue
					}
					fmt.Printf("  slot %2d: FAILED (%s, SW=%04X)\n", r.Slot, r.Step, r.SW)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to a 16-byte key .hex file (default: all-zero factory key)")
	cmd.Flags().StringVar(&keyDir, "key-dir", "", "directory of .hex key files to try against every slot (overrides --key-file)")
	return cmd
}
