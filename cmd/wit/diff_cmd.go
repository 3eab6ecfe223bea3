package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

// diffRunner is the seam createDiffCommand's RunE calls through; tests
// substitute a fake to exercise the output-format branches without a
// pair of real disc images.
type diffRunner func(a, b string, opts pipeline.DiffOptions) (*pipeline.DiffResult, error)

var runDiff diffRunner = pipeline.DiffDisc

var (
	diffFormat        string
	diffPretty        bool
	diffSkipIdentical bool
	diffReportZst     string
)

func createDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [flags] IMAGE_FILE1 IMAGE_FILE2",
		Short: "compares the file contents of two disc images",
		Long: `Diff walks the selected partitions of two disc images file by
file and reports, for every path present on either side, whether it is
missing on one side, differs in size, differs in content, or is
identical.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeDiff,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().StringVar(&diffFormat, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&diffPretty, "pretty", false, "pretty-print JSON output")
	cmd.Flags().BoolVar(&diffSkipIdentical, "skip-identical", true, "omit identical entries from the report")
	cmd.Flags().StringVar(&diffReportZst, "report-zst", "", "also write a zstd-compressed copy of the report to this path")
	return cmd
}

func executeDiff(cmd *cobra.Command, args []string) error {
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	result, err := runDiff(args[0], args[1], pipeline.DiffOptions{
		Selector:      disc.Selector{All: true},
		Keys:          keys,
		SkipIdentical: diffSkipIdentical,
	})
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "diffing images")
	}

	var buf bytes.Buffer
	if err := writeDiffResult(&buf, result, diffFormat, diffPretty); err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return werr.Wrap(werr.KindIO, err, "writing report")
	}
	if diffReportZst != "" {
		if err := writeReportZst(diffReportZst, buf.Bytes()); err != nil {
			return err
		}
	}
	if result.Differs() {
		return werr.New(werr.KindDiffer, "images differ")
	}
	return nil
}

func writeDiffResult(out io.Writer, result *pipeline.DiffResult, format string, pretty bool) error {
	switch format {
	case "text":
		for _, e := range result.Entries {
			fmt.Fprintf(out, "%-16s %s\n", e.Kind.String(), e.Path)
		}
		return nil
	case "json":
		var b []byte
		var err error
		if pretty {
			b, err = json.MarshalIndent(result, "", "  ")
		} else {
			b, err = json.Marshal(result)
		}
		if err != nil {
			return werr.Wrap(werr.KindFatal, err, "marshal json")
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil
	default:
		return werr.Newf(werr.KindSyntax, "unsupported --format %q (expected text or json)", format)
	}
}
