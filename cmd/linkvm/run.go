package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linkvm/pkg/engine"
	"linkvm/pkg/modules"
	"linkvm/pkg/unitcache"
)

var (
	prefetchWorkers int
	jsonOutput      bool
)

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Link and evaluate a module and print its exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			if _, err := e.RunModule(args[0]); err != nil {
				return err
			}
			return printExports(cmd.OutOrStdout(), e, args[0], jsonOutput)
		})
	},
}

var exportsCmd = &cobra.Command{
	Use:   "exports <url>",
	Short: "Link a module without evaluating it and list its exported names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			record, err := e.Instantiate(args[0])
			if err != nil {
				return err
			}
			for _, name := range record.Unit().ExportedNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <url>",
	Short: "Populate a unit and print its runtime tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			u, err := e.Load(args[0])
			if err != nil {
				return err
			}
			if !u.IsPopulated() {
				if err := u.Populate(); err != nil {
					return err
				}
			}
			u.Dump(cmd.OutOrStdout())
			return nil
		})
	},
}

func init() {
	runCmd.Flags().IntVar(&prefetchWorkers, "workers", 0, "prefetch workers (0 uses one per CPU)")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print exports as a JSON object")
}

// newEngine builds an engine over the module directory, wrapping the file
// provider in the configured unit cache. The returned cleanup closes both.
func newEngine(cmd *cobra.Command) (*engine.Engine, func(), error) {
	store, err := openCache()
	if err != nil {
		return nil, nil, fmt.Errorf("open unit cache: %w", err)
	}
	catalog, err := loadCatalog()
	if err != nil {
		closeStore(store)
		return nil, nil, err
	}

	opts := engine.Options{
		HeapThreshold:   cfg.GC.Threshold,
		Logger:          logger,
		Providers:       []modules.Provider{modules.NewCachedProvider(modules.NewOSFSProvider(moduleDir), store)},
		PrefetchWorkers: prefetchWorkers,
	}
	if catalog != nil {
		opts.Translator = catalog
	}
	if cfg.Debug.ShowBytecode {
		opts.Diagnostics = cmd.ErrOrStderr()
	}
	e := engine.New(opts)
	return e, func() {
		e.Close()
		closeStore(store)
	}, nil
}

func closeStore(store unitcache.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("closing unit cache", zap.Error(err))
	}
}

// withEngine prefetches the graph of the command's url argument before
// handing the engine to fn.
func withEngine(cmd *cobra.Command, fn func(*engine.Engine) error) error {
	e, cleanup, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	if _, err := e.Prefetch(cmd.Context(), cmd.Flags().Args()...); err != nil {
		return err
	}
	return fn(e)
}

func printExports(w io.Writer, e *engine.Engine, url string, asJSON bool) error {
	exports, err := e.Exports(url)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exports)
	}
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s = %s\n", name, exports[name].Inspect())
	}
	return nil
}
