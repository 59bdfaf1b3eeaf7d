package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/davidthor/shipctl/pkg/record"
)

func newListCmd() *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded deployments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := record.NewStore("")
			if err != nil {
				return err
			}

			var records []record.Record
			if app != "" {
				records, err = store.ListApp(app)
			} else {
				records, err = store.List()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No deployments recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAPP\tREGION\tURL\tCREATED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.App, rec.Region, rec.ServiceURL,
					rec.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "Only list deployments for this app")
	return cmd
}
