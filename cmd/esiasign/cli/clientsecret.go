package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdean75/esia-sign/esia"
)

type clientSecretOptions struct {
	scope    string
	clientID string
	state    string
	now      func() time.Time
}

func newClientSecretCommand(o *rootOptions) *cobra.Command {
	co := &clientSecretOptions{now: time.Now}
	cmd := &cobra.Command{
		Use:   "client-secret",
		Short: "Compute the ESIA client_secret parameter",
		Long: `client-secret signs scope, timestamp, client_id and state with a detached
signature and prints the values to send to the ESIA authorization endpoint.
A random state is generated unless --state is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runClientSecret(co)
		},
	}
	cmd.Flags().StringVar(&co.scope, "scope", "", "space separated scopes")
	cmd.Flags().StringVar(&co.clientID, "client-id", "", "registered client identifier")
	cmd.Flags().StringVar(&co.state, "state", "", "request state UUID")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func (o *rootOptions) runClientSecret(co *clientSecretOptions) error {
	signer, err := o.newSigner(true)
	if err != nil {
		return err
	}
	p := esia.ClientSecretParams{
		Scope:     co.scope,
		Timestamp: co.now(),
		ClientID:  co.clientID,
		State:     co.state,
	}
	if p.State == "" {
		p.State = esia.NewState()
	}
	secret, err := esia.ClientSecret(signer, p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(o.stdout, "client_id=%s\nscope=%s\ntimestamp=%s\nstate=%s\nclient_secret=%s\n",
		p.ClientID, p.Scope, p.FormattedTimestamp(), p.State, secret)
	return err
}
