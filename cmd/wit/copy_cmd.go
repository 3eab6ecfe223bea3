package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/utils/display"
	"github.com/wiimm/witcore/internal/werr"
)

// copyConverter is the seam createCopyCommand's RunE calls through.
var copyConverter pipeline.ConvertImageInterface = pipeline.NewConverter()

var (
	copyDestFormat string
	copyFakeSign   bool
)

func createCopyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "copy [flags] SRC_IMAGE DST_IMAGE",
		Aliases: []string{"convert"},
		Short:   "copies a disc image, optionally converting container format or fake-signing",
		Long: `Copy streams a disc image's used sectors (per its usage map)
into a destination container, which may be a different container
format than the source. With --fake-sign, every copied partition's
ticket and TMD are re-signed with the SHA-1 leading-zero bypass rather
than preserving the source signature bytes verbatim.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeCopy,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().StringVar(&copyDestFormat, "format", "iso", "destination container format: iso, ciso, gcz, wdf1, or wdf2")
	cmd.Flags().BoolVar(&copyFakeSign, "fake-sign", false, "re-sign copied partitions with the SHA-1 leading-zero bypass")
	return cmd
}

func parseDestFormat(s string) (image.Format, error) {
	switch s {
	case "iso":
		return image.FormatISO, nil
	case "ciso":
		return image.FormatCISO, nil
	case "gcz":
		return image.FormatGCZ, nil
	case "wdf1":
		return image.FormatWDF1, nil
	case "wdf2":
		return image.FormatWDF2, nil
	default:
		return image.FormatISO, werr.Newf(werr.KindSyntax, "unsupported --format %q (expected iso, ciso, gcz, wdf1, or wdf2)", s)
	}
}

func executeCopy(cmd *cobra.Command, args []string) error {
	destFormat, err := parseDestFormat(copyDestFormat)
	if err != nil {
		return err
	}
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}

	result, err := copyConverter.ConvertImage(args[0], args[1], pipeline.ConvertOptions{
		DestFormat: destFormat,
		FakeSign:   copyFakeSign,
		Selector:   disc.Selector{All: true},
		Keys:       keys,
	})
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "copying image")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s: %d bytes written, %d sectors skipped, %d partition(s) re-signed\n",
		result.SourceFormat, result.DestFormat, result.BytesWritten, result.SectorsSkipped, result.PartitionsSigned)
	display.PrintImageSummary(display.Summary{
		Path:              args[1],
		Format:            result.DestFormat.String(),
		BytesWritten:      result.BytesWritten,
		PartitionsPatched: result.PartitionsSigned,
	})
	return nil
}
