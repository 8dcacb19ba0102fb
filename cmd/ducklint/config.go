package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"ducklint/internal/config"
	"ducklint/internal/paths"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the project configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to .ducklint/config.toml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration, environment overrides included",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables that override configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigEnv,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing configuration")
	configCmd.AddCommand(configInitCmd, configShowCmd, configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	path := paths.ConfigPath(root)
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(root); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return printResponse(cmd, cfg, cfg)
}

// EnvResponseCLI lists the supported environment overrides
type EnvResponseCLI struct {
	Variables []EnvVarCLI `json:"variables" yaml:"variables"`
}

// EnvVarCLI is one environment override and its current value
type EnvVarCLI struct {
	Name  string `json:"name" yaml:"name"`
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Set   bool   `json:"set" yaml:"set"`
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	bindings := config.SupportedEnvVars()
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := &EnvResponseCLI{}
	for _, name := range names {
		value, set := os.LookupEnv(name)
		resp.Variables = append(resp.Variables, EnvVarCLI{Name: name, Key: bindings[name], Value: value, Set: set})
	}
	return printResponse(cmd, nil, resp)
}
