package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"rp6502/internal/observ"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>... [-o name]",
	Short: "Upload files to the RP6502 USB drive",
	Long: `Copy local files to the USB mass storage drive attached to the RIA using the
monitor's UPLOAD command. Files keep their base name unless a single file is
renamed with -o.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringP("output", "o", "", "destination name (single file only)")
	addDeviceFlags(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	dest, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if dest != "" && len(args) != 1 {
		return fmt.Errorf("-o names a single upload, got %d files", len(args))
	}

	ctx := cmd.Context()
	b, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	timer := observ.NewTimer()
	phase := timer.Begin("break")
	if err := b.SendBreak(ctx); err != nil {
		return fmt.Errorf("no monitor prompt: %w", err)
	}
	timer.End(phase, "")

	for _, file := range args {
		name := dest
		if name == "" {
			name = filepath.Base(file)
		}
		note(cmd, "Uploading %s", file)
		phase := timer.Begin("upload " + name)
		if err := b.UploadFile(ctx, file, name); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		timer.End(phase, "")
	}
	if showTimings(cmd) {
		fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
	}
	return nil
}
