package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"linkvm/pkg/compiled"
	"linkvm/pkg/engine"
	"linkvm/pkg/unitcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the unit cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm <url>...",
	Short: "Load module graphs into the unit cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Cache.Backend == unitcache.BackendNone {
			return fmt.Errorf("unit cache is disabled")
		}
		return withEngine(cmd, func(e *engine.Engine) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%d module(s) cached\n", e.Stats().Registry.CompiledModules)
			return nil
		})
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached units",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(store unitcache.Store) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVERSION\tSOURCE TIME\tSIZE")
			err := store.ForEach(func(key unitcache.Key, data []byte) error {
				h, err := compiled.ReadHeader(data)
				if err != nil {
					fmt.Fprintf(tw, "%s\t-\t-\t%d\n", key, len(data))
					return nil
				}
				stamp := "-"
				if h.SourceTimeStamp != 0 {
					stamp = time.UnixMilli(h.SourceTimeStamp).UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%x\t%s\t%d\n", key, h.Version, stamp, len(data))
				return nil
			})
			if err != nil {
				return err
			}
			return tw.Flush()
		})
	},
}

var cacheVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Decode every cached unit and report broken entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(store unitcache.Store) error {
			var ok, broken int
			err := store.ForEach(func(key unitcache.Key, data []byte) error {
				if _, err := compiled.Unmarshal(data, 0); err != nil {
					broken++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", key, err)
					return nil
				}
				ok++
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d valid, %d broken\n", ok, broken)
			if broken > 0 {
				return fmt.Errorf("%d broken cache entries", broken)
			}
			return nil
		})
	},
}

func init() {
	cacheWarmCmd.Flags().IntVar(&prefetchWorkers, "workers", 0, "prefetch workers (0 uses one per CPU)")
	cacheCmd.AddCommand(cacheWarmCmd, cacheListCmd, cacheVerifyCmd)
}

func withStore(fn func(unitcache.Store) error) error {
	store, err := openCache()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("unit cache is disabled")
	}
	defer closeStore(store)
	return fn(store)
}
