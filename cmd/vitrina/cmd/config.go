package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vitrina-app/vitrina/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults and VITRINA_* overrides are
applied, in the vitrina.yaml format. The result is validated; problems are
reported after the YAML.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if file := config.ConfigFileUsed(); file != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", file)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "# no config file, defaults and environment only")
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}
	return nil
}
