package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/parsegraph/pkg/analysis"
	"github.com/matzehuels/parsegraph/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persisted analysis results",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheInfoCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all persisted analysis results",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cachePath()
			if err != nil {
				return fmt.Errorf("get cache path: %w", err)
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}
			if err := cache.RemoveFile(path); err != nil {
				return err
			}
			printSuccess("Cache cleared")
			printDetail("File: %s", path)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cachePath()
			if err != nil {
				return fmt.Errorf("get cache path: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// cacheInfoCommand creates the "cache info" subcommand.
func (c *CLI) cacheInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show how many results are cached for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cachePath()
			if err != nil {
				return fmt.Errorf("get cache path: %w", err)
			}
			svc, _, err := c.newService(cmd.Context(), &backendFlags{})
			if err != nil {
				return err
			}
			if _, err := svc.Cache().LoadFile(path, svc.BaseURL(), analysis.CheckResult); err != nil {
				return err
			}
			printKeyValue("backend", svc.BaseURL())
			printKeyValue("entries", StyleNumber.Render(fmt.Sprintf("%d/%d", svc.Cache().Len(), svc.Cache().Cap())))
			printKeyValue("file", path)
			return nil
		},
	}
}
