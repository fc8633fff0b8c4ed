package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// KeyDelimiter separates nested keys. Dots are avoided so that map keys such as libpq options survive intact.
const KeyDelimiter = "::"

// Options controls where LoadConfig looks for configuration beyond the embedded defaults.
type Options struct {
	// Yaml files merged over the defaults, in order.
	OverrideFiles []string
	// Path of a dotenv file; ignored if the file does not exist.
	DotEnvFile string
	// Maps dotenv/environment variable names onto configuration keys, e.g. DB_HOST -> postgres::connection::host.
	EnvAliases map[string]string
	// Prefix for automatic environment overrides, e.g. JOBBENCH gives JOBBENCH_BENCHMARK_NUMWORKERS.
	EnvPrefix string
}

// LoadConfig populates config from the embedded yaml defaults, then override files, then the dotenv file and
// environment. The viper instance is returned so callers can bind command line flags over the result.
func LoadConfig(config any, defaults []byte, opts Options) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, "error reading default config")
	}

	for _, path := range opts.OverrideFiles {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", path)
		}
		logging.Debugf("Read config from %s", path)
	}

	if opts.EnvPrefix != "" {
		v.SetEnvKeyReplacer(strings.NewReplacer(KeyDelimiter, "_"))
		v.SetEnvPrefix(opts.EnvPrefix)
		v.AutomaticEnv()
	}

	if err := applyEnvAliases(v, opts.DotEnvFile, opts.EnvAliases); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(config, CustomHooks...); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}
	return v, nil
}

// applyEnvAliases copies aliased variables onto their configuration keys. The process environment wins over the
// dotenv file.
func applyEnvAliases(v *viper.Viper, dotEnvFile string, aliases map[string]string) error {
	if len(aliases) == 0 {
		return nil
	}
	dotEnv := viper.New()
	if dotEnvFile != "" {
		if _, err := os.Stat(dotEnvFile); err == nil {
			dotEnv.SetConfigFile(dotEnvFile)
			dotEnv.SetConfigType("env")
			if err := dotEnv.ReadInConfig(); err != nil {
				return errors.Wrapf(err, "error reading %s", dotEnvFile)
			}
			logging.Debugf("Read environment overrides from %s", dotEnvFile)
		} else if !os.IsNotExist(err) {
			return errors.WithStack(err)
		}
	}

	for envKey, configKey := range aliases {
		if value, ok := os.LookupEnv(envKey); ok {
			v.Set(configKey, value)
		} else if dotEnv.IsSet(envKey) {
			v.Set(configKey, dotEnv.GetString(envKey))
		}
	}
	return nil
}
