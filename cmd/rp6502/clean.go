package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rp6502/internal/buildcache"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Remove the project's build directory",
	Long:  "Remove the [build].output directory of the project and, with --cache, the shared object cache.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().Bool("cache", false, "also drop the per-user object cache")
}

func runClean(cmd *cobra.Command, args []string) error {
	dropCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return err
	}
	dir, err := projectArg(args)
	if err != nil {
		return err
	}
	manifest, err := requireProject(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	outDir := manifest.OutputDir()
	removed, err := removeAll(outDir)
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", outDir, err)
	}
	if removed {
		fmt.Fprintf(out, "removed %s\n", displayPath(outDir))
	} else {
		fmt.Fprintln(out, "build directory not found")
	}

	if dropCache {
		cache, err := buildcache.Open(cacheApp)
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return fmt.Errorf("failed to drop cache: %w", err)
		}
		fmt.Fprintf(out, "dropped cache %s\n", cache.Dir())
	}
	return nil
}
