package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rp6502/internal/buildcache"
	"rp6502/internal/buildpipeline"
	"rp6502/internal/console"
	"rp6502/internal/toolchain"
)

// cacheApp names the per-user cache directory.
const cacheApp = "rp6502"

var buildCmd = &cobra.Command{
	Use:   "build [flags] [path]",
	Short: "Build an rp6502 project",
	Long: `Build the project described by rp6502.toml: compile every source with cc65
through the argument-filtering wrapper, link with ld65 and package a .rp6502
ROM. Outputs go to the [build].output directory, together with a
compile_commands.json for editors.`,
	Args: cobra.MaximumNArgs(1),
	RunE: buildExecution,
}

func init() {
	buildCmd.Flags().Int("jobs", 0, "parallel compile jobs (0 = number of CPUs)")
	buildCmd.Flags().Bool("keep-tmp", false, "keep the intermediate .s files of C sources")
	buildCmd.Flags().Bool("print-commands", false, "print every tool command line")
	buildCmd.Flags().Bool("no-cache", false, "do not read or write the object cache")
	buildCmd.Flags().String("ui", "auto", "progress display (auto|on|off)")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	keepTmp, err := cmd.Flags().GetBool("keep-tmp")
	if err != nil {
		return err
	}
	printCommands, err := cmd.Flags().GetBool("print-commands")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	if jobs < 0 {
		return fmt.Errorf("--jobs must not be negative")
	}

	dir, err := projectArg(args)
	if err != nil {
		return err
	}
	manifest, err := requireProject(dir)
	if err != nil {
		return err
	}
	sources, err := manifest.Sources()
	if err != nil {
		return err
	}

	var cache *buildcache.Cache
	if !noCache {
		cache, err = buildcache.Open(cacheApp)
		if err != nil {
			console.Warnf(cmd.ErrOrStderr(), prog, "build cache disabled: %v", err)
			cache = nil
		}
	}

	req := &buildpipeline.BuildRequest{
		Manifest:      manifest,
		Toolchain:     toolchain.OptionsFromEnv(),
		Jobs:          jobs,
		KeepTmp:       keepTmp,
		PrintCommands: printCommands,
		Cache:         cache,
		Stdout:        cmd.OutOrStdout(),
		Stderr:        cmd.ErrOrStderr(),
	}

	var result buildpipeline.BuildResult
	if shouldUseTUI(mode) && !printCommands {
		files := make([]string, len(sources))
		for i, src := range sources {
			files[i] = src.Rel
		}
		result, err = runBuildWithUI(cmd.Context(), "building "+manifest.Name(), files, req, cmd.ErrOrStderr())
	} else {
		result, err = buildpipeline.Build(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !isQuiet(cmd) {
		cached := 0
		for _, u := range result.Units {
			if u.Cached {
				cached++
			}
		}
		fmt.Fprintf(out, "built %s (%d units, %d cached)\n", displayPath(result.ROM), len(result.Units), cached)
	}
	if showTimings(cmd) {
		printStageTimings(out, result.Timings)
	}
	return nil
}

// removeAll deletes path and reports whether anything was there.
func removeAll(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, os.RemoveAll(path)
}
