package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	esiasign "github.com/mdean75/esia-sign"
)

// Output encodings for the sign command.
const (
	EncodingDER       = "der"
	EncodingBase64    = "base64"
	EncodingBase64URL = "base64url"
	EncodingPEM       = "pem"
)

type signOptions struct {
	in       string
	out      string
	attached bool
	encoding string
}

func newSignCommand(o *rootOptions) *cobra.Command {
	so := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a payload and write the CMS envelope",
		Long: `Sign reads the payload from --in (stdin by default) and writes a CMS
SignedData envelope to --out (stdout by default). The signature is detached
unless --attached is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runSign(so)
		},
	}
	cmd.Flags().StringVar(&so.in, "in", "-", "payload file, - for stdin")
	cmd.Flags().StringVar(&so.out, "out", "-", "envelope file, - for stdout")
	cmd.Flags().BoolVar(&so.attached, "attached", false, "embed the payload in the envelope")
	cmd.Flags().StringVar(&so.encoding, "encoding", EncodingBase64,
		"output encoding (der, base64, base64url, pem)")
	return cmd
}

func (o *rootOptions) runSign(so *signOptions) error {
	if _, err := encodeResult(&esiasign.SignatureResult{}, so.encoding); err != nil {
		return err
	}
	signer, err := o.newSigner(!so.attached)
	if err != nil {
		return err
	}

	var in io.Reader = o.stdin
	if so.in != "-" {
		f, err := os.Open(so.in)
		if err != nil {
			return fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		in = f
	}
	res, err := signer.SignReader(in)
	if err != nil {
		return err
	}
	out, err := encodeResult(res, so.encoding)
	if err != nil {
		return err
	}

	if so.out == "-" {
		_, err = o.stdout.Write(out)
		return err
	}
	if err := os.WriteFile(so.out, out, 0o644); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

func encodeResult(res *esiasign.SignatureResult, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingDER:
		return res.Envelope, nil
	case EncodingBase64:
		return []byte(res.Base64() + "\n"), nil
	case EncodingBase64URL:
		return []byte(res.Base64URL() + "\n"), nil
	case EncodingPEM:
		return res.PEM(), nil
	default:
		return nil, fmt.Errorf("unknown encoding %q: want der, base64, base64url or pem", encoding)
	}
}
