package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowSatellite string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with defaults applied",
	Long: `Print the effective configuration as YAML.

With --satellite the {satellite} placeholders in the data list paths are
expanded the way 'run' and 'submit' expand them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if configShowSatellite != "" {
			sat, err := checkSatellite(configShowSatellite)
			if err != nil {
				return err
			}
			cfg = cfg.ForSatellite(sat)
		}
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration loads and validates",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, path, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configShowSatellite, "satellite", "", "expand data list paths for this satellite")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
