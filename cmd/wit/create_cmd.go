package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

var (
	createSourceImage string
	createOverrideDir string
	createFakeSign    bool
)

func createCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [flags] MANIFEST_FILE DST_IMAGE",
		Short: "reassembles a disc image from a skeleton manifest",
		Long: `Create is SKELETONIZE's inverse: given a manifest.yaml written
by skeletonize, reassemble a disc image at DST_IMAGE, pulling each
entry's bytes from --source (normally the disc skeletonize was run
against) and substituting any file found under --override-dir in its
place, re-hashing and re-encrypting each touched partition.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeCreate,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().StringVar(&createSourceImage, "source", "", "original disc image to pull unmodified file bytes from (required)")
	cmd.Flags().StringVar(&createOverrideDir, "override-dir", "", "directory of files (by FST path) that replace the source's content")
	cmd.Flags().BoolVar(&createFakeSign, "fake-sign", false, "re-sign touched partitions with the SHA-1 leading-zero bypass")
	return cmd
}

func executeCreate(cmd *cobra.Command, args []string) error {
	if createSourceImage == "" {
		return werr.New(werr.KindSyntax, "create: --source is required")
	}
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}

	result, err := pipeline.CreateDisc(args[1], pipeline.CreateOptions{
		ManifestPath: args[0],
		SourceImage:  createSourceImage,
		OverrideDir:  createOverrideDir,
		FakeSign:     createFakeSign,
		Keys:         keys,
	})
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "creating image")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d bytes written, %d partition(s) rebuilt\n", result.BytesWritten, result.PartitionsPatched)
	printEditSummary(args[1], result)
	return nil
}
