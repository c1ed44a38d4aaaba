package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	app_config "github.com/veristake/veristake/config"
)

type initArguments struct {
	Home      string
	Overwrite bool
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the home directory and write a default config.toml",
	Long:  ``,
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	initCmd.Flags().StringVarP(&initArgs.Home, "homedir", "d", "", "home directory")
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, "overwrite", "o", false, "overwrite an existing config.toml")
}

func initRun(cmd *cobra.Command, args []string) error {
	cfg := app_config.DefaultConfig(initArgs.Home)
	if _, err := os.Stat(cfg.ConfigFile()); err == nil && !initArgs.Overwrite {
		return fmt.Errorf("config file %s already exists, use -o to overwrite", cfg.ConfigFile())
	}
	if err := cfg.ValidateBasic(); err != nil {
		return err
	}
	if err := app_config.WriteConfigFile(cfg.ConfigFile(), cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", cfg.ConfigFile())
	return nil
}
