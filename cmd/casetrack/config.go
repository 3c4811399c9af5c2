package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "casetrack"
	configFileType = "yaml"
	envPrefix      = "CASETRACK"

	keyServer     = "server"
	keyUser       = "user"
	keyIdleWindow = "idle-window"
	keyHeartbeat  = "heartbeat"
	keyStrict     = "strict"
	keyVerbose    = "verbose"

	defaultServer     = "http://localhost:8080"
	defaultIdleWindow = 20 * time.Minute
	defaultHeartbeat  = 30 * time.Second
)

// settings is the resolved CLI configuration.
type settings struct {
	Server     string
	User       string
	IdleWindow time.Duration
	Heartbeat  time.Duration
	Strict     bool
	Verbose    bool
}

// loadSettings resolves flags over env (CASETRACK_*) over the config file
// over defaults. A missing config file is not an error unless --config names it.
func loadSettings(cmd *cobra.Command, configFile string) (settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return settings{}, fmt.Errorf("bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "casetrack"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := settings{
		Server:     strings.TrimRight(v.GetString(keyServer), "/"),
		User:       strings.TrimSpace(v.GetString(keyUser)),
		IdleWindow: v.GetDuration(keyIdleWindow),
		Heartbeat:  v.GetDuration(keyHeartbeat),
		Strict:     v.GetBool(keyStrict),
		Verbose:    v.GetBool(keyVerbose),
	}
	if s.Server == "" {
		return settings{}, fmt.Errorf("%w: --server is required", errUsage)
	}
	if s.IdleWindow <= 0 {
		return settings{}, fmt.Errorf("%w: --idle-window must be positive", errUsage)
	}
	return s, nil
}
