package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const DefaultFile = "moviedb.toml"

// Config of the moviedb CLI, flags override it.
type Config struct {
	// Dir holds the databases, ":memory:" keeps them in process.
	Dir    string `toml:"dir"`
	Engine string `toml:"engine"`
	// Schema file (toml, yaml or json), the built-in movie schema when empty.
	Schema        string `toml:"schema,omitempty"`
	FailIfBlocked bool   `toml:"failIfBlocked,omitempty"`
	Verbosity     int    `toml:"verbosity,omitempty"`
	Metrics       bool   `toml:"metrics,omitempty"`
}

func Default() Config {
	return Config{
		Dir:    ".moviedb",
		Engine: "pebble",
	}
}

// Load reads filename over the defaults.
// A missing file is only an error when required.
func Load(filename string, required bool) (Config, error) {
	c := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return c, nil
		}
		return c, errors.Wrapf(err, "read config %s", filename)
	}

	if err := toml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "decode config %s", filename)
	}

	return c, nil
}

func (c Config) Save(filename string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
