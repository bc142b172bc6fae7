package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/intrinsics"
)

// NewIntrinsicsCommand creates the intrinsics command.
func NewIntrinsicsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "intrinsics",
		Short: "List the intrinsic catalog",
		Long: `List every known intrinsic URI. Aggregations move values from
clients to the server; secure aggregations never reveal individual client
values. --forbid-insecure on check forbids every aggregation not marked
secure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			uris := intrinsics.URIs()
			infos := make([]intrinsics.Info, 0, len(uris))
			for _, uri := range uris {
				info, _ := intrinsics.Lookup(uri)
				infos = append(infos, info)
			}

			if formatter.Format == "json" {
				return formatter.Success(infos)
			}
			for _, info := range infos {
				flags := ""
				switch {
				case info.Secure:
					flags = "aggregation, secure"
				case info.Aggregation:
					flags = "aggregation"
				}
				fmt.Fprintf(formatter.Writer, "%-28s %s\n", info.URI, flags)
			}
			return nil
		},
	}
}
