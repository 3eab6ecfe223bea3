package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

// verifyRunner is the seam createVerifyCommand's RunE calls through.
type verifyRunner func(path string, opts pipeline.VerifyOptions) (*pipeline.VerifyResult, error)

var runVerify verifyRunner = pipeline.VerifyDisc

var (
	verifyDeep      bool
	verifyReportZst string
)

func createVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [flags] IMAGE_FILE",
		Short: "checks a disc image's partitions for corruption",
		Long: `Verify opens a disc image's partitions and reports any
non-fatal warnings recorded while opening them (H3/TMD or boot-id
mismatches). With --deep, it additionally rebuilds each partition's
full hash tree and checks every cluster against it, localizing any
corruption to a specific cluster.`,
		Args:              cobra.ExactArgs(1),
		RunE:              executeVerify,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().BoolVar(&verifyDeep, "deep", false, "rebuild and check every cluster's hash tree entry")
	cmd.Flags().StringVar(&verifyReportZst, "report-zst", "", "also write a zstd-compressed copy of the report to this path")
	return cmd
}

func executeVerify(cmd *cobra.Command, args []string) error {
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	result, err := runVerify(args[0], pipeline.VerifyOptions{
		Selector: disc.Selector{All: true},
		Deep:     verifyDeep,
		Keys:     keys,
	})
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "verifying image")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "partitions checked: %d\n", result.PartitionsChecked)
	for _, issue := range result.Issues {
		if issue.Cluster >= 0 {
			fmt.Fprintf(&buf, "  partition %#x cluster %d: %s\n", issue.PartitionOffset, issue.Cluster, issue.Message)
		} else {
			fmt.Fprintf(&buf, "  partition %#x: %s\n", issue.PartitionOffset, issue.Message)
		}
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return werr.Wrap(werr.KindIO, err, "writing report")
	}
	if verifyReportZst != "" {
		if err := writeReportZst(verifyReportZst, buf.Bytes()); err != nil {
			return err
		}
	}
	if !result.OK() {
		return werr.Newf(werr.KindDiffer, "%d issue(s) found", len(result.Issues))
	}
	return nil
}
