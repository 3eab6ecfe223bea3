// Package codec provides the one external-process compression seam
// this module needs: WIA's BZIP2 group codec. Every other codec WIA,
// GCZ, and WDF2 support has a pure-Go library in this module's
// dependency set (klauspost/compress, ulikunitz/xz, anchore/go-lzo,
// pierrec/lz4); BZIP2 compression does not, since the standard
// library's compress/bzip2 only implements a reader, never a writer.
package codec

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/wiimm/witcore/internal/logger"
)

var log = logger.Logger()

// Runner executes an external codec binary, feeding it input on stdin
// and returning its stdout. Grounded on internal/utils/shell.Executor's
// swappable-package-var shape (shell.Default Executor): the same
// "interface plus package var" seam, trimmed to the one operation this
// module actually needs (a filter process, no chroot/sudo/streaming).
type Runner interface {
	Run(name string, args []string, input []byte) ([]byte, error)
}

// execRunner shells out via os/exec.
type execRunner struct{}

func (execRunner) Run(name string, args []string, input []byte) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("codec: %s: %w (stderr: %s)", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Default is the Runner used by BZIP2Compress; tests substitute a fake
// here rather than requiring a real bzip2 binary on PATH.
var Default Runner = execRunner{}

// BZIP2Compress shells out to the system "bzip2" binary to compress p
// at the default compression level. Returns an error if bzip2 is not
// installed; callers (WIA's compressGroup) fall back to an
// already-supported codec when this fails.
func BZIP2Compress(p []byte) ([]byte, error) {
	out, err := Default.Run("bzip2", []string{"-z", "-c"}, p)
	if err != nil {
		return nil, fmt.Errorf("codec: bzip2 compress: %w", err)
	}
	return out, nil
}
