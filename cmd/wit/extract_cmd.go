package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/pipeline"
	"github.com/wiimm/witcore/internal/werr"
)

var extractSystemFiles bool

func createExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [flags] IMAGE_FILE DEST_DIR",
		Short: "extracts a disc image's files into a host directory",
		Long: `Extract walks a disc image's partitions via its file map and
writes every regular file (and, with --system, the system files
boot.bin/bi2.bin/apploader.img/main.dol/fst.bin/h3.bin) to DEST_DIR,
preserving the FST's directory structure.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeExtract,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().BoolVar(&extractSystemFiles, "system", false, "also extract partition system files")
	return cmd
}

func executeExtract(cmd *cobra.Command, args []string) error {
	imagePath, destDir := args[0], args[1]

	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	m, err := pipeline.BuildFileMap(imagePath, disc.Selector{All: true}, keys)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "building file map")
	}

	c, err := image.Open(imagePath, true)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "opening image")
	}
	defer c.Close()

	d, err := disc.OpenDisc(c, keys)
	if err != nil {
		return werr.Wrap(werr.KindFormat, err, "reading disc structure")
	}
	parts := d.SelectPartitions(disc.Selector{All: true})

	out := cmd.OutOrStdout()
	extracted := 0
	var failures error
	for _, e := range m.Entries {
		if e.System && !extractSystemFiles {
			continue
		}
		if err := extractOne(destDir, e, parts); err != nil {
			failures = multierr.Append(failures, werr.Wrap(werr.KindIO, err, fmt.Sprintf("extracting %s", e.Path)))
			continue
		}
		extracted++
	}
	fmt.Fprintf(out, "extracted %d file(s) to %s\n", extracted, destDir)
	return failures
}

// extractOne writes a single file map entry to destDir, continuing the
// caller's loop over the remaining entries on failure rather than
// aborting the whole extraction for one bad file.
func extractOne(destDir string, e pipeline.FileMapEntry, parts []*disc.Partition) error {
	part := partitionAtOffset(parts, e.PartitionOffset)
	if part == nil {
		return werr.Newf(werr.KindFatal, "no partition at offset %#x", e.PartitionOffset)
	}
	data, err := part.ReadPart(e.DataOff4, int(e.Size), true)
	if err != nil {
		return err
	}
	dest := filepath.Join(destDir, filepath.FromSlash(e.Path))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}

func partitionAtOffset(parts []*disc.Partition, off int64) *disc.Partition {
	for _, p := range parts {
		if p.AbsOffset == off {
			return p
		}
	}
	return nil
}
