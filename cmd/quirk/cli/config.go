package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quirk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration and credentials",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			path = defaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Config already exists at %s\n", path)
			os.Exit(1)
		}
		if err := config.Default().Save(path); err != nil {
			fmt.Printf("Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file for problems",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		result := cfg.Validate()
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Printf("error: %s\n", e)
		}
		if !result.Valid {
			os.Exit(1)
		}
		fmt.Println("Configuration is valid.")
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [backend] [api-key]",
	Short: "Store an API key for an oracle backend, encrypted at rest",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		vault, err := openVault(cfg)
		if err != nil {
			fmt.Printf("Failed to open vault: %v\n", err)
			os.Exit(1)
		}
		if err := vault.Set(args[0], args[1]); err != nil {
			fmt.Printf("Failed to store key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Stored API key for %s\n", args[0])
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List backends with stored API keys",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		vault, err := openVault(cfg)
		if err != nil {
			fmt.Printf("Failed to open vault: %v\n", err)
			os.Exit(1)
		}
		backends := vault.Backends()
		if len(backends) == 0 {
			fmt.Println("(no stored keys)")
			return
		}
		for _, b := range backends {
			fmt.Println(b)
		}
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configKeysCmd)
}
