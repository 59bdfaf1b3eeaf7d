package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/engine"
	"github.com/davidthor/shipctl/pkg/plan/visual"
)

func newPlanCmd() *cobra.Command {
	var mermaid bool

	cmd := &cobra.Command{
		Use:   "plan <descriptor>",
		Short: "Show the resource plan for a descriptor without deploying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			desc, err := descriptor.NewLoader().Load(args[0])
			if err != nil {
				return err
			}

			provisioner, err := newProvisioner(viper.GetString("engine"), out)
			if err != nil {
				return err
			}
			eng := engine.New(provisioner, engine.Options{
				Region: viper.GetString("region"),
				Output: out,
			})

			g, err := eng.Plan(ctx, desc)
			if err != nil {
				return err
			}

			if mermaid {
				rendered, err := visual.RenderMermaid(g, visual.MermaidOptions{
					Title: desc.Name + " plan",
				})
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
				return nil
			}

			ordered, err := g.TopologicalSort()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Plan for %s: %d resources\n\n", desc.Name, g.Len())
			for _, req := range ordered {
				if len(req.DependsOn) > 0 {
					fmt.Fprintf(out, "  + %-20s %s (after %s)\n", req.Kind, req.Name, strings.Join(req.DependsOn, ", "))
				} else {
					fmt.Fprintf(out, "  + %-20s %s\n", req.Kind, req.Name)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "Render the plan as a mermaid flowchart")
	return cmd
}
