package cmd

import (
	"fmt"
	"sort"

	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func completionConfigKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	keys := lo.Keys(config.Defaults)
	sort.Strings(keys)
	return keys, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configInitCmd, configPathCmd)

	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the streamdl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set [key] [value]",
	Short:             "Set a configuration key and save the file",
	Long:              "Set a configuration key and save the file. Lists are comma separated, downloader.params is space separated.",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completionConfigKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.Set(cfg, key, value); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		cmd.Printf("set %s to %s\n", key, value)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists() && !lo.Must(cmd.Flags().GetBool("force")) {
			return fmt.Errorf("%s already exists, use --force to overwrite", config.Path())
		}
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", config.Path())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(config.Path())
	},
}
