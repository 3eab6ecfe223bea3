// Package fakesign implements the SHA-1 leading-zero-byte brute force
// that the Wii/GC secure-boot signature check is vulnerable to: any
// certificate chain whose SHA-1 hash begins with a zero byte is treated
// as valid, regardless of the signature bytes themselves. Zeroing the
// signature and iterating a 32-bit counter field until that property
// holds is "fake signing."
package fakesign

import (
	"crypto/sha1"
	"fmt"

	"github.com/wiimm/witcore/internal/format"
)

// MaxIterations bounds the brute-force search. The property holds on
// average after 256 attempts (1-in-256 chance per counter value); a
// search this long failing indicates a broken SignedRegion/SetFakeSign
// wiring rather than bad luck.
const MaxIterations = 1 << 20

// signable is satisfied by both *format.Ticket and *format.TMD: each
// exposes its own signature field and the signed byte range that field
// covers, even though the two underlying structures are unrelated.
type signable interface {
	ZeroSignature()
	IsZeroSignature() bool
	SignedRegion() []byte
	SetFakeSign(uint32)
}

// Result reports the outcome of a fake-sign brute force.
type Result struct {
	Counter    uint32
	Iterations int
}

// Sign zeroes s's signature, then searches for a counter value making
// SHA-1(s.SignedRegion())[0] == 0, storing the winning counter via
// s.SetFakeSign. Returns the counter and the number of attempts taken.
func Sign(s signable) (Result, error) {
	s.ZeroSignature()
	for counter := uint32(0); counter < MaxIterations; counter++ {
		s.SetFakeSign(counter)
		sum := sha1.Sum(s.SignedRegion())
		if sum[0] == 0 {
			return Result{Counter: counter, Iterations: int(counter) + 1}, nil
		}
	}
	return Result{}, fmt.Errorf("fakesign: no fake-sign counter found within %d iterations", MaxIterations)
}

// IsFakeSigned reports whether s is fake-signed: its signature field is
// entirely zero, and the resulting signed region's SHA-1 hash begins
// with a zero byte. Checking the hash alone would misreport a
// legitimately-signed ticket/TMD as fake-signed whenever its real
// signature happens to hash to a leading zero byte (roughly 1 in 256).
func IsFakeSigned(s signable) bool {
	if !s.IsZeroSignature() {
		return false
	}
	sum := sha1.Sum(s.SignedRegion())
	return sum[0] == 0
}

// SignTicket is a thin, type-specific wrapper for callers that don't
// want to depend on the unexported signable interface directly.
func SignTicket(t *format.Ticket) (Result, error) { return Sign(t) }

// SignTMD is the TMD equivalent of SignTicket.
func SignTMD(t *format.TMD) (Result, error) { return Sign(t) }

// MaybeFakeSign fake-signs both the ticket and TMD of a partition when
// enabled is true, skipping work entirely when disabled — e.g. when a
// partition is being written for a real console that will re-sign it,
// or when the caller only wants to patch payload bytes without
// touching signatures.
func MaybeFakeSign(enabled bool, t *format.Ticket, m *format.TMD) error {
	if !enabled {
		return nil
	}
	if _, err := SignTicket(t); err != nil {
		return fmt.Errorf("fakesign: ticket: %w", err)
	}
	if _, err := SignTMD(m); err != nil {
		return fmt.Errorf("fakesign: tmd: %w", err)
	}
	return nil
}
