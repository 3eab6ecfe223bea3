package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

var listInteractive bool

func createListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list [flags] IMAGE_FILE",
		Aliases: []string{"files"},
		Short:   "lists the files reachable in a disc image's partitions",
		Long: `List walks the selected partitions' FST and prints every file
and system file, sorted by partition offset then path. With
--interactive, a tcell/tview tree browser is launched instead of a
flat listing.`,
		Args:              cobra.ExactArgs(1),
		RunE:              executeList,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().BoolVar(&listInteractive, "interactive", false, "browse the FST tree interactively")
	return cmd
}

func executeList(cmd *cobra.Command, args []string) error {
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	m, err := pipeline.BuildFileMap(args[0], disc.Selector{All: true}, keys)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "listing files")
	}

	if listInteractive {
		return runFileBrowser(m)
	}

	out := cmd.OutOrStdout()
	for _, e := range m.Entries {
		fmt.Fprintln(out, e.String())
	}
	return nil
}
