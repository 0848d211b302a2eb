// Package cli implements the wonder command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/wonder/internal/paths"
	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds the global flag values and what PersistentPreRunE loads from
// them. Each root command owns its own app.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool

	cfg *viper.Viper
	log *logrus.Logger
}

// NewRootCmd creates the top-level "wonder" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "wonder",
		Short:         "Organize manuscripts, characters, places and episodes",
		Long:          "Wonder keeps writing projects in a local library: a tree of manuscripts,\ncharacters, places and episodes plus the relations between them.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $WONDER_CONFIG_DIR or the user config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: config data_dir, $WONDER_DATA_DIR or the user data dir)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newProjectCmd(a),
		newTreeCmd(a),
		newListCmd(a),
		newMkdirCmd(a),
		newNewCmd(a),
		newRenameCmd(a),
		newRmCmd(a),
		newClearCmd(a),
		newMvCmd(a),
		newDocCmd(a),
		newRelateCmd(a),
		newSchemaCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return ExitCode(err)
}

// setup loads .env, the config file and the logger before any subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	a.log = logrus.New()
	a.log.SetOutput(cmd.ErrOrStderr())
	a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	a.log.SetLevel(logrus.WarnLevel)
	if a.verbose {
		a.log.SetLevel(logrus.DebugLevel)
	}

	if cmd.Name() == "version" {
		return nil
	}
	dir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolving config dir: %w", err))
	}
	a.configDir = dir
	a.cfg, err = loadConfig(dir)
	if err != nil {
		return sysError(err)
	}
	a.log.WithField("config_dir", dir).Debug("loaded config")
	return nil
}

// libraryConfig resolves where the library lives.
func (a *app) libraryConfig() (types.Config, error) {
	dir, err := paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolving data dir: %w", err)
	}
	return types.Config{DataDir: dir, DatabaseName: a.cfg.GetString(cfgKeyDatabaseName)}, nil
}

// openLibrary opens the library, creating the data directory on first use.
// The caller must Close it.
func (a *app) openLibrary(ctx context.Context) (*store.Library, error) {
	cfg, err := a.libraryConfig()
	if err != nil {
		return nil, sysError(err)
	}
	if err := paths.EnsureDir(cfg.DataDir); err != nil {
		return nil, sysError(err)
	}
	lib, err := store.Open(ctx, cfg, store.WithLogger(a.log))
	if err != nil {
		return nil, classify(err)
	}
	return lib, nil
}

// withLibrary adapts a command body that needs an open library into a RunE.
func (a *app) withLibrary(fn func(cmd *cobra.Command, lib *store.Library, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		lib, err := a.openLibrary(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := lib.Close(); cerr != nil && err == nil {
				err = sysError(cerr)
			}
		}()
		return classify(fn(cmd, lib, args))
	}
}
