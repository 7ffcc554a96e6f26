package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rp6502/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new rp6502 project",
	Long: `Initialize a new rp6502 project by creating a manifest (rp6502.toml) and a
hello-world entry point (src/main.c, or src/main.s with --asm). If
[path|name] is omitted, initializes the current directory. A missing
directory is created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("asm", false, "start from the ca65 boot routine instead of C")
	initCmd.Flags().StringP("device", "D", "", "serial device to record in [device]")
	initCmd.Flags().StringP("message", "m", "", "greeting printed by the hello-world program")
}

func runInit(cmd *cobra.Command, args []string) error {
	asm, err := cmd.Flags().GetBool("asm")
	if err != nil {
		return err
	}
	device, err := cmd.Flags().GetString("device")
	if err != nil {
		return err
	}
	message, err := cmd.Flags().GetString("message")
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	target := wd
	if len(args) > 0 && args[0] != "." {
		target = args[0]
		if !filepath.IsAbs(target) {
			target = filepath.Join(wd, target)
		}
	}

	created, err := project.Scaffold(target, project.ScaffoldOptions{
		Name:    filepath.Base(target),
		Asm:     asm,
		Device:  device,
		Message: message,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized rp6502 project in %s\n", displayPath(target))
	for _, name := range created {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	return nil
}
