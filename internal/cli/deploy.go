package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/engine"
	"github.com/davidthor/shipctl/pkg/record"
	"github.com/davidthor/shipctl/pkg/resolver"
	"github.com/davidthor/shipctl/pkg/secrets"
)

func newDeployCmd() *cobra.Command {
	var autoApprove bool
	var awsSecrets bool

	cmd := &cobra.Command{
		Use:   "deploy <descriptor>",
		Short: "Deploy a service from a descriptor file",
		Long: `Deploy loads a descriptor, resolves secrets and the build context,
assembles the resource plan, and provisions it against the selected
engine. The resulting service and metrics URLs are printed and saved
to the local deployment record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			desc, err := descriptor.NewLoader().Load(args[0])
			if err != nil {
				return err
			}

			region := viper.GetString("region")

			mgr := secrets.DefaultManager()
			if awsSecrets {
				provider, err := secrets.NewAWSProvider(ctx, region)
				if err != nil {
					return fmt.Errorf("configuring aws secrets provider: %w", err)
				}
				mgr.RegisterProvider(provider)
			}
			desc.Secrets, err = mgr.ResolveDescriptor(ctx, desc.Secrets)
			if err != nil {
				return err
			}

			if desc.BuildContext != "" {
				resolved, err := resolver.New(resolver.Options{}).Resolve(ctx, desc.BuildContext)
				if err != nil {
					return fmt.Errorf("resolving build context: %w", err)
				}
				desc.BuildContext = resolved.Path
			}

			provisioner, err := newProvisioner(viper.GetString("engine"), out)
			if err != nil {
				return err
			}
			eng := engine.New(provisioner, engine.Options{
				Region:      region,
				Parallelism: viper.GetInt("parallelism"),
				Output:      out,
			})

			g, err := eng.Plan(ctx, desc)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deploying %s to %s (%d resources)\n\n", desc.Name, region, g.Len())

			if !autoApprove {
				if !isInteractive() {
					return fmt.Errorf("refusing to deploy without confirmation in a non-interactive session (use --auto-approve)")
				}
				ok, err := confirm(cmd, "Proceed with deployment? [Y/n]: ")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Deployment cancelled")
					return nil
				}
			}

			result, err := eng.Deploy(ctx, desc)
			if err != nil {
				return err
			}
			if err := result.Wait(ctx); err != nil {
				return err
			}

			serviceURL, _ := result.ServiceURL.Get()
			metricsURL, _ := result.MetricsURL.Get()
			imageURI, _ := result.ImageURI.Get()

			fmt.Fprintf(out, "\nService URL: %s\n", serviceURL)
			fmt.Fprintf(out, "Metrics:     %s\n", metricsURL)

			store, err := record.NewStore("")
			if err != nil {
				return err
			}
			rec, err := store.Save(record.Record{
				App:        desc.Name,
				Region:     region,
				ServiceURL: serviceURL,
				MetricsURL: metricsURL,
				ImageURI:   imageURI,
			})
			if err != nil {
				return fmt.Errorf("saving deployment record: %w", err)
			}
			fmt.Fprintf(out, "Recorded deployment %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&awsSecrets, "aws-secrets", false, "Resolve ${secret:...} references via AWS Secrets Manager")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes", nil
}
