package configuration

import (
	_ "embed"

	"github.com/spf13/viper"

	commonconfig "github.com/armadaproject/jobbench/internal/common/config"
)

//go:embed config.yaml
var defaultConfig []byte

const (
	EnvPrefix  = "JOBBENCH"
	DotEnvFile = ".env"
)

// envAliases are the variable names used by the database helper scripts this tool replaces.
var envAliases = map[string]string{
	"DB_HOST":     "postgres::connection::host",
	"DB_PORT":     "postgres::connection::port",
	"DB_USER":     "postgres::connection::user",
	"DB_PASSWORD": "postgres::connection::password",
	"DB_NAME":     "postgres::connection::dbname",
}

// Load reads the embedded defaults, the given override files and the environment. The result is not validated.
func Load(overrideFiles []string) (Configuration, *viper.Viper, error) {
	var config Configuration
	v, err := commonconfig.LoadConfig(&config, defaultConfig, commonconfig.Options{
		OverrideFiles: overrideFiles,
		DotEnvFile:    DotEnvFile,
		EnvAliases:    envAliases,
		EnvPrefix:     EnvPrefix,
	})
	if err != nil {
		return Configuration{}, nil, err
	}
	return config, v, nil
}
