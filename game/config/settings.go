package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/restartfu/gophig"
)

// Settings holds the server settings read from settings.toml. Tour content
// lives in JSON files under Server.ConfigDir.
type Settings struct {
	Server struct {
		Address         string
		ConfigDir       string
		SessionDir      string
		LeaderboardPath string
		// SessionMaxAgeHours bounds how long an idle session survives.
		SessionMaxAgeHours int
		DefaultTour        string
		Language           string
	}
	Log struct {
		Level string // Can be "debug", "info", "warn", "error"
	}
	Sentry struct {
		Dsn         string
		Environment string
	}
	Ngrok struct {
		Enabled bool
		Domain  string
	}
}

// DefaultSettings returns settings with prefilled default values.
func DefaultSettings() Settings {
	s := Settings{}

	s.Server.Address = ":8080"
	s.Server.ConfigDir = "configs"
	s.Server.SessionDir = "data/sessions"
	s.Server.LeaderboardPath = "data/leaderboard.json"
	s.Server.SessionMaxAgeHours = 24
	s.Server.DefaultTour = DefaultTour
	s.Server.Language = "pt-BR"

	s.Log.Level = "info"

	s.Sentry.Environment = "development"

	return s
}

// ParseLogLevel maps a settings level name to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unrecognized log level: %q", level)
	}
}

// ReadSettings loads the settings file at path, writing the defaults first
// when it does not exist.
func ReadSettings(path string) (Settings, error) {
	g := gophig.NewGophig[Settings](path, gophig.TOMLMarshaler{}, os.ModePerm)
	_, err := g.LoadConf()
	if os.IsNotExist(err) {
		if err := g.SaveConf(DefaultSettings()); err != nil {
			return Settings{}, err
		}
	}
	return g.LoadConf()
}
