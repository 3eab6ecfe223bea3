package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

var (
	dolpatchDOLFile  string
	dolpatchPath     string
	dolpatchOffset   int64
	dolpatchFakeSign bool
)

func createDolpatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dolpatch [flags] SRC_IMAGE DST_IMAGE",
		Short: "overlays a host file onto a disc's main.dol (or another FST path)",
		Long: `Dolpatch is EDIT's common case made convenient: replace part or
all of a disc's executable (main.dol by default, or --path for any
other FST entry) with bytes from a host file, re-hashing and
re-encrypting the owning partition as a side effect.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeDolpatch,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().StringVar(&dolpatchDOLFile, "file", "", "host file whose bytes replace the target FST entry (required)")
	cmd.Flags().StringVar(&dolpatchPath, "path", "sys/main.dol", "FST path to patch")
	cmd.Flags().Int64Var(&dolpatchOffset, "offset", 0, "byte offset within the FST entry to start the patch at")
	cmd.Flags().BoolVar(&dolpatchFakeSign, "fake-sign", false, "re-sign the touched partition with the SHA-1 leading-zero bypass")
	return cmd
}

func executeDolpatch(cmd *cobra.Command, args []string) error {
	if dolpatchDOLFile == "" {
		return werr.New(werr.KindSyntax, "dolpatch: --file is required")
	}
	data, err := os.ReadFile(dolpatchDOLFile)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, fmt.Sprintf("reading %s", dolpatchDOLFile))
	}

	keys, err := loadKeyRing()
	if err != nil {
		return err
	}

	opts := pipeline.EditOptions{
		FilePatches: []pipeline.FilePatch{{Path: dolpatchPath, Offset: dolpatchOffset, Data: data}},
		FakeSign:    dolpatchFakeSign,
		Keys:        keys,
	}
	result, err := pipeline.EditDisc(args[0], args[1], opts)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "patching image")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d bytes written, %d partition(s) rebuilt\n", result.BytesWritten, result.PartitionsPatched)
	printEditSummary(args[1], result)
	return nil
}
