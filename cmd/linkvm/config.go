package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"linkvm/pkg/config"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + "." + config.ConfigFileExt
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.DefaultConfig().WriteFile(path, forceInit); err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", abs)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
