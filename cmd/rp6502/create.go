package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rp6502/internal/console"
	"rp6502/internal/rom"
)

var createCmd = &cobra.Command{
	Use:   "create -o <out.rp6502> -a <addr> [flags] <binary> [rom...]",
	Short: "Create a .rp6502 ROM file from a binary and other ROM files",
	Long: `Create a ROM file from a raw binary loaded at --address, optionally setting
the NMI, reset and IRQ vectors, then merge further .rp6502 files into it.
Any address may be given as $FFFF, 0xFFFF, decimal, or "file" to read it
from the next two bytes at the front of the binary (data, nmi, reset, irq).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringP("output", "o", "", "output ROM file (required)")
	createCmd.Flags().StringP("address", "a", "", "load address of the binary, or \"file\" (required)")
	createCmd.Flags().StringP("nmi", "n", "", "NMI vector for $FFFA-$FFFB, or \"file\"")
	createCmd.Flags().StringP("reset", "r", "", "reset vector for $FFFC-$FFFD, or \"file\"")
	createCmd.Flags().StringP("irq", "i", "", "IRQ vector for $FFFE-$FFFF, or \"file\"")
	createCmd.Flags().StringArray("help-line", nil, "add a line of help text (repeatable)")
}

type createOptions struct {
	Output    string
	Binary    string
	ROMs      []string
	Addresses rom.Addresses
	Help      []string
}

func runCreate(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if output == "" {
		return fmt.Errorf("argument -o/--output required")
	}
	help, err := cmd.Flags().GetStringArray("help-line")
	if err != nil {
		return err
	}
	opts := createOptions{Output: output, Binary: args[0], ROMs: args[1:], Help: help}
	for _, f := range []struct {
		name string
		dst  *rom.Address
	}{
		{"address", &opts.Addresses.Data},
		{"nmi", &opts.Addresses.NMI},
		{"reset", &opts.Addresses.Reset},
		{"irq", &opts.Addresses.IRQ},
	} {
		if *f.dst, err = addressFlag(cmd, f.name); err != nil {
			return err
		}
	}
	if opts.Addresses.Data.IsZero() {
		return fmt.Errorf("argument -a/--address required")
	}

	var notes io.Writer = io.Discard
	if !isQuiet(cmd) {
		notes = cmd.OutOrStdout()
	}
	return createROM(opts, notes)
}

func createROM(opts createOptions, notes io.Writer) error {
	console.Notef(notes, prog, "Creating %s", opts.Output)
	r := rom.New()
	for _, line := range opts.Help {
		if err := r.AddHelp(line); err != nil {
			return err
		}
	}
	console.Notef(notes, prog, "Adding binary asset %s", opts.Binary)
	if err := r.AddBinaryFile(opts.Binary, opts.Addresses); err != nil {
		return err
	}
	for _, file := range opts.ROMs {
		console.Notef(notes, prog, "Adding ROM asset %s", file)
		if err := r.AddROMFile(file); err != nil {
			return err
		}
	}
	return r.WriteFile(opts.Output)
}

// addressFlag parses the named address flag; unset flags give the zero Address.
func addressFlag(cmd *cobra.Command, name string) (rom.Address, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return rom.Address{}, err
	}
	addr, err := rom.ParseAddress(value)
	if err != nil {
		label := "--" + name
		if short := cmd.Flags().Lookup(name).Shorthand; short != "" {
			label = "-" + short + "/" + label
		}
		return rom.Address{}, fmt.Errorf("argument %s: %w", label, err)
	}
	return addr, nil
}
