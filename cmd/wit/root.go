// Package main assembles the wit command-line surface over the
// internal/disc, internal/image, internal/pipeline, and internal/config
// packages: LIST/FILES, DUMP, EXTRACT, COPY/CONVERT, DIFF, VERIFY, EDIT,
// RENAME, SKELETONIZE, CREATE, DOLPATCH, and CERT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/config"
	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/logger"
	"github.com/wiimm/witcore/internal/pattern"
	"github.com/wiimm/witcore/internal/werr"
)

// defaults holds the process-wide WIT_OPT-derived configuration, read
// once in main before the command tree executes.
var defaults config.Defaults

// rootMacroPack is the optional --macro-pack path, validated and
// merged into internal/pattern's macro namespace before any
// subcommand's RunE executes.
var rootMacroPack string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wit",
		Short:         "wit inspects, converts, and verifies GameCube/Wii optical-disc images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if rootMacroPack == "" {
				return nil
			}
			if err := pattern.LoadMacroPack(rootMacroPack); err != nil {
				return werr.Wrap(werr.KindSyntax, err, "loading macro pack")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&rootMacroPack, "macro-pack", "", "JSON file defining additional named macros for --files/--rm-files style pattern rules")
	root.AddCommand(
		createDumpCommand(),
		createDiffCommand(),
		createVerifyCommand(),
		createListCommand(),
		createExtractCommand(),
		createCopyCommand(),
		createEditCommand(),
		createRenameCommand(),
		createSkeletonizeCommand(),
		createCreateCommand(),
		createDolpatchCommand(),
		createCertCommand(),
	)
	return root
}

// templateFileCompletion completes the remaining positional arguments
// with filesystem paths, the fallback every subcommand that takes an
// image-file argument wires into its ValidArgsFunction.
func templateFileCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveDefault
}

// loadKeyRing resolves the common-key ring from the process-wide
// defaults, wrapped with a werr.Kind so a missing/malformed manifest
// maps to the right exit code rather than a bare error string.
func loadKeyRing() (*crypto.KeyRing, error) {
	ring, err := defaults.LoadKeyRing()
	if err != nil {
		return nil, werr.Wrap(werr.KindMissing, err, "loading common-key manifest")
	}
	return ring, nil
}

func main() {
	defaults = config.Load()
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wit:", err)
		os.Exit(werr.KindOf(err).ExitCode())
	}
}
