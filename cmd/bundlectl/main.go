// Command bundlectl is the offline counterpart to the Management Service's
// in-process bundle export/import: it packages a config directory into a
// signed, compressed archive for out-of-band distribution to a site,
// verifies one before trusting it, stages it for a rollout ring, and
// diffs it against a local config tree. Grounded on
// tools/bundlectl/bundlectl.py.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/videowall-controlplane/internal/bundlectl"
)

func main() {
	root := &cobra.Command{
		Use:   "bundlectl",
		Short: "Export, verify, import, and diff video-wall config bundles",
	}

	root.AddCommand(exportCmd(), verifyCmd(), importCmd(), diffCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func exportCmd() *cobra.Command {
	var output, key, configDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build a signed bundle from a config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bundlectl.Export(configDir, output, key); err != nil {
				return err
			}
			fmt.Printf("wrote bundle to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "bundle.tar.zst", "output bundle path")
	cmd.Flags().StringVar(&key, "key", "", "ed25519 private key seed file, required")
	cmd.Flags().StringVar(&configDir, "config-dir", "", "config directory to bundle, required")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("config-dir")
	return cmd
}

func verifyCmd() *cobra.Command {
	var bundle, pubkey string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a bundle's signature and content hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := bundlectl.Verify(bundle, pubkey)
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			if !result.OK {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundle, "bundle", "", "bundle path, required")
	cmd.Flags().StringVar(&pubkey, "pubkey", "", "ed25519 public key file, required")
	_ = cmd.MarkFlagRequired("bundle")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

func importCmd() *cobra.Command {
	var bundle, pubkey, stageDir string
	var ring int
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Verify a bundle and stage it for a rollout ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ring < 0 || ring > 2 {
				return fmt.Errorf("bundlectl: --ring must be 0, 1, or 2")
			}
			target, err := bundlectl.Import(bundle, pubkey, bundlectl.Ring(ring), stageDir)
			if err != nil {
				return err
			}
			fmt.Printf("staged bundle at %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&bundle, "bundle", "", "bundle path, required")
	cmd.Flags().StringVar(&pubkey, "pubkey", "", "ed25519 public key file, required")
	cmd.Flags().IntVar(&ring, "ring", 0, "rollout ring to stage into: 0 (staging), 1 (pilot), 2 (full)")
	cmd.Flags().StringVar(&stageDir, "stage-dir", "/var/lib/vw-bundles", "base directory for ring staging subdirectories")
	_ = cmd.MarkFlagRequired("bundle")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

func diffCmd() *cobra.Command {
	var bundle, configDir string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare a bundle's config against a local config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			diffs, err := bundlectl.Diff(bundle, configDir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(diffs); err != nil {
				return err
			}
			if len(diffs) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundle, "bundle", "", "bundle path, required")
	cmd.Flags().StringVar(&configDir, "config-dir", "", "local config directory to compare against, required")
	_ = cmd.MarkFlagRequired("bundle")
	_ = cmd.MarkFlagRequired("config-dir")
	return cmd
}
