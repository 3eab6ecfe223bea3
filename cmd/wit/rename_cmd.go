package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

var (
	renameID6   string
	renameTitle string
)

func createRenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename [flags] SRC_IMAGE DST_IMAGE",
		Short: "rewrites a disc's id6 and/or title into a new image",
		Long: `Rename is a thin wrapper over EDIT that only ever touches the
disc header: since the header sits outside every partition's hash
tree, no re-hash or re-sign is ever needed to rename a disc.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeRename,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().StringVar(&renameID6, "id6", "", "overwrite the disc's 6-character id")
	cmd.Flags().StringVar(&renameTitle, "title", "", "overwrite the disc's title")
	return cmd
}

func executeRename(cmd *cobra.Command, args []string) error {
	var opts pipeline.EditOptions
	if renameID6 != "" {
		if len(renameID6) != 6 {
			return werr.Newf(werr.KindSyntax, "--id6 must be exactly 6 characters, got %q", renameID6)
		}
		var id6 [6]byte
		copy(id6[:], renameID6)
		opts.ID6 = &id6
	}
	if renameTitle != "" {
		var title [0x40]byte
		copy(title[:], renameTitle)
		opts.Title = &title
	}
	if opts.ID6 == nil && opts.Title == nil {
		return werr.New(werr.KindSyntax, "rename: at least one of --id6 or --title is required")
	}

	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	opts.Keys = keys

	result, err := pipeline.EditDisc(args[0], args[1], opts)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "renaming image")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d bytes written\n", result.BytesWritten)
	printEditSummary(args[1], result)
	return nil
}
