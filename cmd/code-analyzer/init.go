// cmd/code-analyzer/init.go
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [repo-path]",
	Short: "Initialize indexing configuration for a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

var initName string

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Repository name (default: directory name)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", absPath)
	}

	out := cmd.OutOrStdout()
	configFile := filepath.Join(absPath, config.RepoConfigFile)
	if _, err := os.Stat(configFile); err == nil {
		fmt.Fprintf(out, "Config already exists at %s\n", configFile)
		return nil
	}

	name := initName
	if name == "" {
		name = filepath.Base(absPath)
	}

	if err := config.WriteRepoConfig(absPath, config.DefaultRepoConfig(name)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configFile)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Review the include and exclude patterns")
	fmt.Fprintf(out, "  2. Run: code-analyzer index %s\n", args[0])
	return nil
}
