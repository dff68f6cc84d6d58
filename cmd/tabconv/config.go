package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultTable is opened when no path is given on the command line or in
// the config file
const defaultTable = "test.tab"

// Config is the optional TOML configuration file
//
//	[mapinfo]
//	path = "cities.tab"
//	charset = "WindowsLatin2"
type Config struct {
	MapInfo MapInfoConfig `toml:"mapinfo"`
}

// MapInfoConfig selects the table to read
type MapInfoConfig struct {
	Path    string `toml:"path"`
	Charset string `toml:"charset"`
}

// loadConfig reads path. An empty path or a missing file yields defaults.
func loadConfig(path string) (Config, error) {
	cfg := Config{MapInfo: MapInfoConfig{Path: defaultTable}}
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.MapInfo.Path == "" {
		cfg.MapInfo.Path = defaultTable
	}
	return cfg, nil
}

// tablePath returns the positional argument if given, else the configured path
func (c Config) tablePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return c.MapInfo.Path
}
