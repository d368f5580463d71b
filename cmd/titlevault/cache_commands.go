package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"titlevault/internal/pkgcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the package header cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func cacheForCommand(ctx *commandContext) (*pkgcache.Cache, error) {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	cache := ctx.packageCache(logger)
	if cache.Path() == "" {
		return nil, nil
	}
	return cache, nil
}

const cacheDisabledMessage = "Package cache is disabled (set packages.cache_path in config.toml)"

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached package headers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := cacheForCommand(ctx)
			if err != nil {
				return err
			}
			if cache == nil {
				fmt.Fprintln(cmd.OutOrStdout(), cacheDisabledMessage)
				return nil
			}
			entries := cache.List()
			if ctx.jsonOutput() {
				return writeJSON(cmd, entries)
			}
			printCacheEntries(cmd, entries)
			return nil
		},
	}
}

func printCacheEntries(cmd *cobra.Command, entries []pkgcache.Entry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cached packages: none")
		return
	}
	now := time.Now()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ContentID,
			humanize.IBytes(uint64(max(e.Size, 0))),
			humanize.RelTime(e.CachedAt, now, "ago", "from now"),
			e.URL,
		})
	}
	fmt.Fprintln(out, renderTable(
		fmt.Sprintf("Cached packages (%d)", len(entries)),
		[]string{"Content ID", "Size", "Cached", "URL"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <url>",
		Short: "Forget the cached header of one package URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := cacheForCommand(ctx)
			if err != nil {
				return err
			}
			if cache == nil {
				fmt.Fprintln(cmd.OutOrStdout(), cacheDisabledMessage)
				return nil
			}
			if _, ok := cache.Lookup(args[0]); !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No cache entry for %s\n", args[0])
				return nil
			}
			if err := cache.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed cache entry for %s\n", args[0])
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached package header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := cacheForCommand(ctx)
			if err != nil {
				return err
			}
			if cache == nil {
				fmt.Fprintln(cmd.OutOrStdout(), cacheDisabledMessage)
				return nil
			}
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached package headers\n", count)
			return nil
		},
	}
}

