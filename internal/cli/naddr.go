package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nostrcal/internal/record"
)

// NaddrResult is the output of the naddr command.
type NaddrResult struct {
	Naddr   string   `json:"naddr"`
	Address string   `json:"address"`
	Relays  []string `json:"relays,omitempty"`
}

func (r NaddrResult) Text(w io.Writer) {
	fmt.Fprintln(w, r.Naddr)
	fmt.Fprintf(w, "  address: %s\n", r.Address)
	for _, u := range r.Relays {
		fmt.Fprintf(w, "  relay: %s\n", u)
	}
}

// NewNaddrCommand creates the naddr command.
func NewNaddrCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "naddr <template-id | naddr1...>",
		Short: "Encode one of your templates as a shareable naddr, or decode one",
		Long: `Encode one of your templates as a shareable naddr, or decode one.

Given a template id, the naddr is built from your public key and the
configured relays; no relay is contacted. Given an naddr, its address and
relay hints are printed.`,
		Example: `  nostrcal naddr tpl-1f0c...
  nostrcal naddr naddr1qq...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			arg := strings.TrimSpace(args[0])

			if strings.HasPrefix(arg, "naddr1") || strings.HasPrefix(arg, "nostr:") {
				addr, relays, err := record.DecodeNaddr(arg)
				if err != nil {
					return f.Fail(WrapExitError(ExitCommandError, "invalid naddr", err))
				}
				return f.Success(NaddrResult{Naddr: strings.TrimPrefix(arg, "nostr:"), Address: addr.String(), Relays: relays})
			}

			key, err := rootOpts.key()
			if err != nil {
				return f.Fail(err)
			}
			if key == nil {
				return f.Fail(NewExitError(ExitCommandError, "NOSTRCAL_NSEC is not set"))
			}
			relays := rootOpts.settings().Relays
			addr := record.Address{Kind: record.KindAvailabilityTemplate, Author: key.Pub(), Identifier: arg}
			code, err := addr.Naddr(relays)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(NaddrResult{Naddr: code, Address: addr.String(), Relays: relays})
		},
	}
}
