package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidthor/shipctl/pkg/descriptor"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <descriptor>",
		Short: "Validate a descriptor file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := descriptor.NewLoader().Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			source := desc.ImageRef
			if desc.BuildContext != "" {
				source = desc.BuildContext
			}
			fmt.Fprintf(out, "%s is valid\n", args[0])
			fmt.Fprintf(out, "  name:   %s\n", desc.Name)
			fmt.Fprintf(out, "  source: %s\n", source)
			fmt.Fprintf(out, "  port:   %d\n", desc.ListenPort)
			return nil
		},
	}
}
