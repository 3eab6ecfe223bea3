package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/format"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/werr"
)

func createCertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "cert [flags] IMAGE_FILE",
		Short:             "prints each partition's certificate chain",
		Long:              `Cert walks every selected partition's certificate chain and reports each entry's subject, issuer, key type, and signature type, along with the chain's overall depth. This is read-only: no signature is actually verified, since the signing scheme this toolkit targets is bypassed by construction (the SHA-1 leading-zero fake-sign trick), not validated.`,
		Args:              cobra.ExactArgs(1),
		RunE:              executeCert,
		ValidArgsFunction: templateFileCompletion,
	}
	return cmd
}

func executeCert(cmd *cobra.Command, args []string) error {
	c, err := image.Open(args[0], true)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "opening image")
	}
	defer c.Close()

	keys, err := loadKeyRing()
	if err != nil {
		return err
	}
	d, err := disc.OpenDisc(c, keys)
	if err != nil {
		return werr.Wrap(werr.KindFormat, err, "reading disc structure")
	}

	out := cmd.OutOrStdout()
	for _, p := range d.SelectPartitions(disc.Selector{All: true}) {
		fmt.Fprintf(out, "partition @%#x: chain %s (depth %d)\n", p.AbsOffset, format.IssuerChain(p.Certs), len(p.Certs))
		for i, cert := range p.Certs {
			fmt.Fprintf(out, "  [%d] issuer=%s subject=%s key=%s sig=%#x\n",
				i, cert.IssuerName(), cert.SubjectName(), cert.KeyTypeName(), cert.SigType)
		}
	}
	return nil
}
