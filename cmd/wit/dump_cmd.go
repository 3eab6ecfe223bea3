package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/werr"
)

// DumpSummary is DUMP's rendered view of a disc: the container format
// plus fields decoded from the disc header and region block, and one
// entry per discovered partition. The boot block is not included.
// Every field carries matching json and yaml tags, so --format json
// and --format yaml emit the same field names.
type DumpSummary struct {
	File          string              `json:"file" yaml:"file"`
	ContainerKind string              `json:"containerKind" yaml:"containerKind"`
	ID6           string              `json:"id6" yaml:"id6"`
	Title         string              `json:"title" yaml:"title"`
	IsWii         bool                `json:"isWii" yaml:"isWii"`
	IsGameCube    bool                `json:"isGameCube" yaml:"isGameCube"`
	MultiBoot     bool                `json:"multiBoot" yaml:"multiBoot"`
	DVD9          bool                `json:"dvd9" yaml:"dvd9"`
	RegionValue   uint32              `json:"regionValue" yaml:"regionValue"`
	Partitions    []DumpPartitionInfo `json:"partitions,omitempty" yaml:"partitions,omitempty"`
}

// DumpPartitionInfo is one partition's DUMP entry.
type DumpPartitionInfo struct {
	Index    int      `json:"index" yaml:"index"`
	Offset   int64    `json:"offset" yaml:"offset"`
	Type     uint32   `json:"type" yaml:"type"`
	State    string   `json:"state" yaml:"state"`
	BootID6  string   `json:"bootId6,omitempty" yaml:"bootId6,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// dumpSummarizer is the seam createDumpCommand's RunE calls through;
// tests substitute a fake to cover output-format branches without a
// real disc image.
type dumpSummarizer func(path string, keys *crypto.KeyRing, deep bool) (*DumpSummary, error)

var summarizeDump dumpSummarizer = summarizeDisc

var (
	dumpFormat string
	dumpPretty bool
	dumpDeep   bool
)

func createDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [flags] IMAGE_FILE",
		Short: "dumps a GameCube/Wii disc image's header, region, and partitions",
		Long: `Dump decodes a disc image's container and on-disc structures
and reports the disc header (id6, title, kind flags), the region
value, and every partition discovered across its partition tables.
Boot-block fields are not reported.`,
		Args:              cobra.ExactArgs(1),
		RunE:              executeDump,
		ValidArgsFunction: templateFileCompletion,
	}
	cmd.Flags().StringVar(&dumpFormat, "format", "text", "output format: text, json, or yaml")
	cmd.Flags().BoolVar(&dumpPretty, "pretty", false, "pretty-print JSON output")
	cmd.Flags().BoolVar(&dumpDeep, "deep", false, "unwrap partition crypto and report boot-id/warnings")
	return cmd
}

func executeDump(cmd *cobra.Command, args []string) error {
	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	summary, err := summarizeDump(args[0], keys, dumpDeep)
	if err != nil {
		return err
	}
	return writeDumpResult(cmd.OutOrStdout(), summary, dumpFormat, dumpPretty)
}

func summarizeDisc(path string, keys *crypto.KeyRing, deep bool) (*DumpSummary, error) {
	c, err := image.Open(path, true)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "opening image")
	}
	defer c.Close()

	fmtKind, err := image.Detect(path)
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "detecting container format")
	}

	d, err := disc.OpenDisc(c, keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "reading disc structure")
	}

	attrib := d.Header.Attrib()
	s := &DumpSummary{
		File:          path,
		ContainerKind: fmtKind.String(),
		ID6:           string(d.Header.ID6[:]),
		Title:         titleFromHeader(d.Header.Title[:]),
		IsWii:         d.Header.IsWii(),
		IsGameCube:    d.Header.IsGameCube(),
		MultiBoot:     attrib.MultiBoot,
		DVD9:          attrib.DVD9,
		RegionValue:   d.Region.RegionValue,
	}

	for i, p := range d.Partitions {
		if deep {
			// EnsureOpen records any failure in p.Warnings/p.State rather
			// than returning fatally; keep reporting every partition
			// instead of aborting the whole dump over one bad entry.
			_ = p.EnsureOpen(keys)
		}
		info := DumpPartitionInfo{
			Index:    i,
			Offset:   p.AbsOffset,
			Type:     uint32(p.Type),
			State:    p.State.String(),
			Warnings: p.Warnings,
		}
		if p.State.String() == "OPEN" {
			info.BootID6 = string(p.BootID6[:])
		}
		s.Partitions = append(s.Partitions, info)
	}
	return s, nil
}

func titleFromHeader(b []byte) string {
	n := len(b)
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
	}
	return string(b[:n])
}

func writeDumpResult(out io.Writer, s *DumpSummary, format string, pretty bool) error {
	switch format {
	case "text":
		printDumpText(out, s)
		return nil
	case "json":
		var b []byte
		var err error
		if pretty {
			b, err = json.MarshalIndent(s, "", "  ")
		} else {
			b, err = json.Marshal(s)
		}
		if err != nil {
			return werr.Wrap(werr.KindFatal, err, "marshal json")
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil
	case "yaml":
		b, err := yaml.Marshal(s)
		if err != nil {
			return werr.Wrap(werr.KindFatal, err, "marshal yaml")
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil
	default:
		return werr.Newf(werr.KindSyntax, "unsupported --format %q (expected text, json, or yaml)", format)
	}
}

func printDumpText(out io.Writer, s *DumpSummary) {
	fmt.Fprintf(out, "%s  (%s)\n", s.File, s.ContainerKind)
	fmt.Fprintf(out, "  id6:        %s\n", s.ID6)
	fmt.Fprintf(out, "  title:      %s\n", s.Title)
	fmt.Fprintf(out, "  kind:       wii=%v gamecube=%v multiboot=%v dvd9=%v\n", s.IsWii, s.IsGameCube, s.MultiBoot, s.DVD9)
	fmt.Fprintf(out, "  region:     %#x\n", s.RegionValue)
	if len(s.Partitions) == 0 {
		return
	}
	fmt.Fprintln(out, "  partitions:")
	for _, p := range s.Partitions {
		fmt.Fprintf(out, "    [%d] off=%#x type=%d state=%s", p.Index, p.Offset, p.Type, p.State)
		if p.BootID6 != "" {
			fmt.Fprintf(out, " bootId6=%s", p.BootID6)
		}
		fmt.Fprintln(out)
		for _, w := range p.Warnings {
			fmt.Fprintf(out, "        warning: %s\n", w)
		}
	}
}
