package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rp6502/internal/boot"
	"rp6502/internal/observ"
	"rp6502/internal/rom"
)

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Write a hello-world ROM without cc65",
	Long: `Assemble the built-in boot routine, which prints a message on the RIA console
and exits to the monitor, and package it as a ROM. Use it to check a board
and its serial link before any toolchain is installed. --listing and
--source print the routine instead.`,
	Args: cobra.NoArgs,
	RunE: runHello,
}

func init() {
	helloCmd.Flags().StringP("message", "m", "Hello, world!", "message to print")
	helloCmd.Flags().String("origin", fmt.Sprintf("$%04X", boot.DefaultOrigin), "load address")
	helloCmd.Flags().StringP("output", "o", "hello.rp6502", "output ROM file")
	helloCmd.Flags().Bool("listing", false, "print the disassembled routine")
	helloCmd.Flags().Bool("source", false, "print equivalent ca65 source")
	helloCmd.Flags().Bool("run", false, "load and start the routine on the board instead of writing a file")
	addDeviceFlags(helloCmd)
}

func runHello(cmd *cobra.Command, _ []string) error {
	message, err := cmd.Flags().GetString("message")
	if err != nil {
		return err
	}
	origin, err := addressFlag(cmd, "origin")
	if err != nil {
		return err
	}
	if !origin.Set {
		return fmt.Errorf("--origin must be a literal address")
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	listing, err := cmd.Flags().GetBool("listing")
	if err != nil {
		return err
	}
	source, err := cmd.Flags().GetBool("source")
	if err != nil {
		return err
	}
	run, err := cmd.Flags().GetBool("run")
	if err != nil {
		return err
	}

	message += "\r\n"
	out := cmd.OutOrStdout()
	switch {
	case source:
		text, err := boot.Source(origin.Value, message)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, text)
		return err
	case listing:
		return printListing(out, origin.Value, message)
	}

	stub, err := boot.Assemble(origin.Value, message)
	if err != nil {
		return err
	}
	r, err := stub.ROM("Hello world boot routine")
	if err != nil {
		return err
	}
	if run {
		return sendAndStart(cmd, r, observ.NewTimer())
	}
	if err := r.WriteFile(output); err != nil {
		return err
	}
	note(cmd, "Created %s (%d bytes at %s)", output, len(stub.Code), rom.At(origin.Value))
	return nil
}

func printListing(out io.Writer, origin int, message string) error {
	stub, err := boot.Assemble(origin, message)
	if err != nil {
		return err
	}
	lines, err := stub.Listing()
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line.String())
	}
	return nil
}
