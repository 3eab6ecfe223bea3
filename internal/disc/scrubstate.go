package disc

// ScrubState reports whether a partition's ticket/TMD pair has been
// deliberately scrubbed (decrypted and never re-encrypted, via
// format.Ticket.MarkNotEncrypted/format.TMD.MarkNotEncrypted) rather
// than genuinely fake-signed or console-signed.
type ScrubState struct {
	TicketScrubbed bool
	TMDScrubbed    bool
}

// Scrubbed reports whether either half of the pair carries the marker.
// A partition produced by this tool always marks both halves together;
// seeing only one set flags a partition edited by some other tool or
// partially processed, which callers may want to warn about.
func (s ScrubState) Scrubbed() bool { return s.TicketScrubbed || s.TMDScrubbed }

// Consistent reports whether the ticket and TMD scrub markers agree.
func (s ScrubState) Consistent() bool { return s.TicketScrubbed == s.TMDScrubbed }

// CheckScrubState inspects p's ticket and TMD for the not-encrypted
// marker, logging a warning if they disagree, and returns the result:
// whether a partition's missing signature is an expected, deliberate
// state (a "scrubbed" disc image shipped for redistribution) rather
// than a fake-signed one awaiting re-signing. No pipeline operation or
// subcommand calls it.
func CheckScrubState(p *Partition) ScrubState {
	s := ScrubState{}
	if p.Ticket != nil {
		s.TicketScrubbed = p.Ticket.IsMarkedNotEncrypted()
	}
	if p.TMD != nil {
		s.TMDScrubbed = p.TMD.IsMarkedNotEncrypted()
	}
	if !s.Consistent() {
		log.Warnw("disc: partition ticket/tmd scrub markers disagree",
			"offset", p.AbsOffset, "ticketScrubbed", s.TicketScrubbed, "tmdScrubbed", s.TMDScrubbed)
	}
	return s
}
