package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linkvm/pkg/config"
	lverrors "linkvm/pkg/errors"
	"linkvm/pkg/i18n"
	"linkvm/pkg/modules"
	"linkvm/pkg/unit"
	"linkvm/pkg/unitcache"
)

// Version is set via -ldflags.
var Version = "dev"

var (
	cfgFile      string
	logLevel     string
	cacheDir     string
	cacheBackend string
	moduleDir    string
	showBytecode bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "linkvm",
	Short: "Load, link and run compiled module units",
	Long: `linkvm materializes compiled units into a runtime heap, links their
imports and exports across the module graph and evaluates them.

Units are read from the module directory as binary .lvmc files or TOML
.lvm manifests and cached in a persistent unit cache.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRootConfig,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./linkvm.toml or $XDG_CONFIG_HOME/linkvm/linkvm.toml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&cacheDir, "cache-dir", "", "unit cache directory")
	flags.StringVar(&cacheBackend, "cache-backend", "", "unit cache backend: bolt, badger or none")
	flags.StringVarP(&moduleDir, "module-dir", "C", ".", "directory module URLs are resolved in")
	flags.BoolVar(&showBytecode, "show-bytecode", false, "dump every unit after it is populated")

	rootCmd.AddCommand(runCmd, exportsCmd, dumpCmd, checkCmd, cacheCmd, configCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "linkvm:", formatError(err))
		var refErr *lverrors.ReferenceError
		var typeErr *lverrors.TypeError
		if errors.As(err, &refErr) || errors.As(err, &typeErr) {
			return 70
		}
		return 1
	}
	return 0
}

// initRootConfig loads the configuration, applies flag overrides and wires
// the package loggers.
func initRootConfig(cmd *cobra.Command, _ []string) error {
	loaded, path, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if cacheDir != "" {
		loaded.Cache.Dir = cacheDir
	}
	if cacheBackend != "" {
		loaded.Cache.Backend = cacheBackend
	}
	if showBytecode {
		loaded.Debug.ShowBytecode = true
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := loaded.NewLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	cfg, logger = loaded, l
	unit.SetLogger(l.Named("unit"))
	modules.SetLogger(l.Named("modules"))
	unitcache.SetLogger(l.Named("unitcache"))
	if path != "" {
		logger.Debug("config loaded", zap.String("path", path))
	}
	return nil
}

func formatError(err error) string {
	var refErr *lverrors.ReferenceError
	if errors.As(err, &refErr) && refErr.Cause != nil {
		return fmt.Sprintf("%v (%v)", refErr, refErr.Cause)
	}
	return err.Error()
}

// openCache opens the configured unit cache; nil means caching is off.
func openCache() (unitcache.Store, error) {
	return unitcache.Open(unitcache.Config{
		Backend:       cfg.Cache.Backend,
		Dir:           cfg.Cache.Dir,
		CompressLevel: cfg.Cache.CompressLevel,
		NoSync:        cfg.Cache.NoSync,
	})
}

// loadCatalog reads the configured translation catalog, if any.
func loadCatalog() (*i18n.Catalog, error) {
	if cfg.I18n.Catalog == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.I18n.Catalog)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return i18n.Load(data, cfg.I18n.Language)
}
