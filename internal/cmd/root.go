package cmd

import (
	"dockmate/internal/env"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	dotenvPath string
}

func (o *globalOptions) load() (*env.Config, error) {
	return env.Load(o.configPath, o.dotenvPath)
}

// NewRootCmd builds the dockmate command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "dockmate",
		Short: "Template-driven service orchestration on a single Docker host",
		Long: `Dockmate provisions databases, caches and small web applications from a
catalog of templates, allocates host ports, keeps a registry of what it runs
and streams progress while it works.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", env.DefaultConfigPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.dotenvPath, "env-file", env.DefaultDotenvPath, "Path to a .env file with DOCKMATE_* settings")

	rootCmd.AddCommand(NewServeCmd(opts))
	rootCmd.AddCommand(NewServicesCmd(opts))
	rootCmd.AddCommand(NewTemplatesCmd(opts))
	rootCmd.AddCommand(NewPortCmd(opts))

	return rootCmd
}
