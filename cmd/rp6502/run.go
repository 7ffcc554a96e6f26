package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"rp6502/internal/observ"
	"rp6502/internal/rom"
)

var runCmd = &cobra.Command{
	Use:   "run [rom]",
	Short: "Load a .rp6502 ROM into RAM and start it",
	Long: `Stop the 6502, write every block of the ROM file to RAM with the monitor's
BINARY command and reset the CPU. Without [rom] the project's build output
is used. A ROM without a reset vector is loaded but not started.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("reset", "r", "", "override the reset vector")
	addDeviceFlags(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	reset, err := addressFlag(cmd, "reset")
	if err != nil {
		return err
	}
	if reset.FromFile {
		return fmt.Errorf("argument -r/--reset: a ROM file has no address prefix to read")
	}
	path, err := romArg(args)
	if err != nil {
		return err
	}

	timer := observ.NewTimer()
	phase := timer.Begin("load")
	note(cmd, "Loading ROM %s", path)
	r := rom.New()
	if err := r.AddROMFile(path); err != nil {
		return err
	}
	if reset.Set {
		if err := r.SetVector(rom.ResetVector, reset.Value); err != nil {
			return err
		}
	}
	timer.End(phase, "")

	if err := sendAndStart(cmd, r, timer); err != nil {
		return err
	}
	if showTimings(cmd) {
		fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
	}
	return nil
}

// sendAndStart writes r to RAM and resets the 6502 when r has a reset vector.
func sendAndStart(cmd *cobra.Command, r *rom.ROM, timer *observ.Timer) error {
	ctx := cmd.Context()
	b, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	phase := timer.Begin("break")
	if err := b.SendBreak(ctx); err != nil {
		return fmt.Errorf("no monitor prompt: %w", err)
	}
	timer.End(phase, "")

	phase = timer.Begin("send")
	if err := b.SendROM(ctx, r); err != nil {
		return err
	}
	timer.End(phase, fmt.Sprintf("%d blocks", len(r.Chunks())))

	if !r.HasResetVector() {
		note(cmd, "No reset vector. Not resetting.")
		return nil
	}
	phase = timer.Begin("reset")
	err = b.Reset(ctx)
	timer.End(phase, "")
	return err
}

// romArg returns the named ROM or the current project's build output.
func romArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	manifest, err := requireProject(".")
	if err != nil {
		return "", fmt.Errorf("no ROM given: %w", err)
	}
	return filepath.Join(manifest.OutputDir(), manifest.Name()+".rp6502"), nil
}
