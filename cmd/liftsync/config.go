package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config keys recognized in liftsync.yaml.
const (
	cfgKeyDatabase  = "database"
	cfgKeyServerURL = "server_url"
	cfgKeyUserID    = "user_id"
	cfgKeyAuthToken = "auth_token"
	cfgKeyLogLevel  = "log.level"
	cfgKeyLogFormat = "log.format"
	cfgKeyLogFile   = "log.file"
)

// cliConfig is the merged result of config file, environment and flags.
type cliConfig struct {
	dbPath    string
	serverURL string
	userID    string
	authToken string
	logLevel  string
	logFormat string
	logFile   string
}

// loadConfig reads liftsync.yaml and merges it with environment variables
// (LIFTSYNC_*) and command-line flags. Precedence: flag > env > file >
// default. A missing config file is not an error.
func loadConfig(path string) (cliConfig, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDatabase, defaultDBPath())
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, "text")

	v.SetEnvPrefix("LIFTSYNC")
	v.BindEnv(cfgKeyServerURL, "LIFTSYNC_SERVER_URL")
	v.BindEnv(cfgKeyUserID, "LIFTSYNC_USER_ID")
	v.BindEnv(cfgKeyAuthToken, "LIFTSYNC_AUTH_TOKEN")
	v.BindEnv(cfgKeyDatabase, "LIFTSYNC_DATABASE")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("liftsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".liftsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cliConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := cliConfig{
		dbPath:    v.GetString(cfgKeyDatabase),
		serverURL: v.GetString(cfgKeyServerURL),
		userID:    v.GetString(cfgKeyUserID),
		authToken: v.GetString(cfgKeyAuthToken),
		logLevel:  v.GetString(cfgKeyLogLevel),
		logFormat: v.GetString(cfgKeyLogFormat),
		logFile:   v.GetString(cfgKeyLogFile),
	}

	// Flags beat everything.
	if flagDB != "" {
		cfg.dbPath = flagDB
	}
	if flagServer != "" {
		cfg.serverURL = flagServer
	}
	if flagUser != "" {
		cfg.userID = flagUser
	}
	if flagToken != "" {
		cfg.authToken = flagToken
	}
	if flagLevel != "" {
		cfg.logLevel = flagLevel
	}
	return cfg, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "liftsync.db"
	}
	return filepath.Join(home, ".liftsync", "liftsync.db")
}
