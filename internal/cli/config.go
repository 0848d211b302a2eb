package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/wonder/internal/paths"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyDataDir      = "data_dir"
	cfgKeyDatabaseName = "database_name"

	envDatabaseName = "WONDER_DATABASE_NAME"
)

// loadConfig reads config.yaml from configDir. A missing file is not an
// error.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDatabaseName, types.DefaultDatabaseName)
	if err := v.BindEnv(cfgKeyDatabaseName, envDatabaseName); err != nil {
		return nil, fmt.Errorf("binding %s: %w", envDatabaseName, err)
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml in configDir with cfg's values
// and reports whether it wrote the file. An existing file is left alone.
func writeConfigIfMissing(configDir string, cfg types.Config) (bool, error) {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := paths.EnsureDir(configDir); err != nil {
		return false, err
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
