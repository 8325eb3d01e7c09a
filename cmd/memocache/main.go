// Command memocache inspects and exercises a memoization cache directory.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time.
var Version = ""

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags and config are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	opt        cache.Options
	logger     *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "memocache",
		Short:         "Inspect and exercise a memoization cache directory",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	root.Version = Version

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: memocache.yaml in the user config dir)")
	pf.String("dir", "", "cache directory (env MEMOCACHE_DIR)")
	pf.IntP("verbose", "v", 1, "verbosity 0-3 (env MEMOCACHE_VERBOSE)")
	pf.String("compression", "", "entry compression: zstd, gzip or none (env MEMOCACHE_COMPRESSION)")
	pf.String("on-storage-error", "", "propagate or recompute (env MEMOCACHE_ON_STORAGE_ERROR)")

	_ = a.v.BindPFlag("dir", pf.Lookup("dir"))
	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("compression", pf.Lookup("compression"))
	_ = a.v.BindPFlag("on_storage_error", pf.Lookup("on-storage-error"))

	root.AddCommand(
		newLsCmd(a),
		newShowCmd(a),
		newCleanTmpCmd(a),
		newBenchCmd(a),
	)
	return root
}

// load layers configuration: environment, then the config file, then
// flags. Only values that are explicitly set override the layer below.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := cache.LoadConfig()
	if err != nil {
		return err
	}
	if err := a.readConfigFile(); err != nil {
		return err
	}

	if a.v.IsSet("dir") {
		cfg.Dir = a.v.GetString("dir")
	}
	if a.v.IsSet("verbose") {
		cfg.Verbosity = a.v.GetInt("verbose")
	}
	if a.v.IsSet("compression") {
		cfg.Compression = a.v.GetString("compression")
	}
	if a.v.IsSet("on_storage_error") {
		cfg.OnStorageError = a.v.GetString("on_storage_error")
	}
	if a.v.IsSet("single_flight") {
		cfg.SingleFlight = a.v.GetBool("single_flight")
	}

	opt, err := cfg.Options()
	if err != nil {
		return err
	}
	opt.Disabled = false // the CLI always works on the directory

	a.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "memocache"})
	if opt.Verbosity >= 3 {
		a.logger.SetLevel(log.DebugLevel)
	}
	opt.Logger = a.logger
	a.opt = opt
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Using configuration file", "path", used)
	}
	return nil
}

func (a *app) readConfigFile() error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		return a.v.ReadInConfig()
	}

	dirs, err := gap.NewScope(gap.User, "memocache").ConfigDirs()
	if err != nil {
		return fmt.Errorf("find configuration directory: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "memocache")}, dirs...)
	}
	for _, d := range dirs {
		a.v.AddConfigPath(d)
	}
	a.v.SetConfigName("memocache")
	a.v.SetConfigType("yaml")

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("parse configuration file: %w", err)
		}
	}
	return nil
}

func (a *app) store() (*cache.Store, error) {
	return cache.NewStore(cache.StoreOptions{
		Dir:       a.opt.Dir,
		Codec:     a.opt.Codec,
		Logger:    a.logger,
		Verbosity: a.opt.Verbosity,
	})
}
