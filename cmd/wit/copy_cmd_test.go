package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/pipeline"
)

type fakeConverter struct {
	result *pipeline.ConvertResult
	err    error
}

func (f *fakeConverter) ConvertImage(src, dst string, opts pipeline.ConvertOptions) (*pipeline.ConvertResult, error) {
	return f.result, f.err
}

func resetCopyFlags() {
	copyDestFormat = "iso"
	copyFakeSign = false
	copyConverter = pipeline.NewConverter()
}

func TestParseDestFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    image.Format
		wantErr bool
	}{
		{"iso", image.FormatISO, false},
		{"ciso", image.FormatCISO, false},
		{"gcz", image.FormatGCZ, false},
		{"wdf1", image.FormatWDF1, false},
		{"wdf2", image.FormatWDF2, false},
		{"bogus", image.FormatISO, true},
	}
	for _, c := range cases {
		got, err := parseDestFormat(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("parseDestFormat(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
		}
		if err == nil && got != c.want {
			t.Errorf("parseDestFormat(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExecuteCopy_Success(t *testing.T) {
	defer resetCopyFlags()
	copyConverter = &fakeConverter{result: &pipeline.ConvertResult{
		SourceFormat: image.FormatISO,
		DestFormat:   image.FormatCISO,
		BytesWritten: 1024,
	}}
	cmd := createCopyCommand()
	out, err := execCmd(t, cmd, "a.iso", "b.ciso")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "1024 bytes written") {
		t.Errorf("expected byte count in output, got: %s", out)
	}
}

func TestExecuteCopy_InvalidFormat(t *testing.T) {
	defer resetCopyFlags()
	copyDestFormat = "bogus"
	cmd := createCopyCommand()
	_, err := execCmd(t, cmd, "a.iso", "b.iso")
	if err == nil || !strings.Contains(err.Error(), "unsupported --format") {
		t.Errorf("expected unsupported-format error, got: %v", err)
	}
}

func TestExecuteCopy_ConverterError(t *testing.T) {
	defer resetCopyFlags()
	copyConverter = &fakeConverter{err: errors.New("boom")}
	cmd := createCopyCommand()
	_, err := execCmd(t, cmd, "a.iso", "b.iso")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}
