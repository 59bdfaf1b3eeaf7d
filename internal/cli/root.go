// Package cli implements the shipctl CLI commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shipctl",
	Short: "Deploy containerized web services",
	Long: `shipctl deploys a containerized web service from a small declarative
descriptor. It decides per concern whether to create or reuse
infrastructure, assembles the resource graph, and provisions it with
maximum safe parallelism.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shipctl/config.yaml)")
	rootCmd.PersistentFlags().String("region", "us-west-2", "Target region")
	rootCmd.PersistentFlags().String("engine", "sim", "Provisioning engine (sim, docker)")
	rootCmd.PersistentFlags().Int("parallelism", 10, "Max concurrent resource requests")

	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("parallelism", rootCmd.PersistentFlags().Lookup("parallelism"))
	viper.SetEnvPrefix("SHIPCTL")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.shipctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// Read config file if it exists
	_ = viper.ReadInConfig()
}
