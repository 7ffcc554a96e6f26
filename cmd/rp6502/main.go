// Command rp6502 builds cc65 projects for the RP6502 Picocomputer and talks
// to the board's RIA monitor: it packages ROM files, loads them into RAM and
// uploads files to the USB drive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"rp6502/internal/console"
	"rp6502/internal/toolchain"
	"rp6502/internal/version"
)

const prog = "rp6502"

var rootCmd = &cobra.Command{
	Use:   prog,
	Short: "RP6502 Picocomputer toolchain helper",
	Long: `rp6502 drives the cc65 toolchain for RP6502 projects (init, build, toolchain),
packages ROM files (create, hello) and loads them over the RIA console
(run, upload).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepareRun,
}

// finishTracing is installed by prepareRun and flushes the tracer once the
// command returns.
var finishTracing = func(error) {}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	rootCmd.Version = version.Banner()
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	finish := finishTracing
	finishTracing = func(error) {}
	finish(err)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		console.Errorf(rootCmd.ErrOrStderr(), prog, "interrupted")
		return 130
	}
	console.Errorf(rootCmd.ErrOrStderr(), prog, "%v", err)
	return toolchain.ExitCode(err)
}

func prepareRun(cmd *cobra.Command, _ []string) error {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode, err := console.ParseColorMode(colorFlag)
	if err != nil {
		return err
	}
	console.ApplyColor(mode)

	finish, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	finishTracing = finish
	return nil
}

func isQuiet(cmd *cobra.Command) bool {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && quiet
}

func showTimings(cmd *cobra.Command) bool {
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	return err == nil && timings
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(toolchainCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(helloCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("trace", "", "write trace events to a file (- for stderr, .ndjson for JSON lines)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|stage|unit|debug)")
	rootCmd.PersistentFlags().Int("trace-ring", 0, "keep the last N trace events and print them when the command fails")
}
