package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

func createSkeletonizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skeletonize [flags] IMAGE_FILE DEST_DIR",
		Short: "extracts a disc's system files and records a manifest of the rest",
		Long: `Skeletonize writes a disc's system files (boot.bin, bi2.bin,
apploader.img, main.dol, fst.bin, h3.bin for each partition) to
DEST_DIR, and records every file's placement — system or not — in
DEST_DIR/manifest.yaml. Regular file content isn't copied: CREATE
pulls it back from the original image, since it's typically unchanged
between a skeleton and the disc it was built from.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeSkeletonize,
		ValidArgsFunction: templateFileCompletion,
	}
	return cmd
}

func executeSkeletonize(cmd *cobra.Command, args []string) error {
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	manifest, err := pipeline.Skeletonize(args[0], args[1], keys)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "skeletonizing image")
	}

	systemFiles := 0
	for _, e := range manifest.Entries {
		if e.System {
			systemFiles++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d system file(s), recorded %d file(s) total\n", systemFiles, len(manifest.Entries))
	return nil
}
