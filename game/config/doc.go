// Package config loads tour definitions and server settings.
//
// Tours are JSON files in a config directory, one per file, addressed by
// file name without the .json suffix. The Manager caches parsed tours and
// validates them with engine.ValidateTourConfig before handing them out.
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	tour, err := manager.LoadConfig("classic")
//
// The default tour is "classic" when present, otherwise the first valid
// file, otherwise a built-in straight road with no stops.
//
// Server settings (listen address, directories, log level, Sentry and
// ngrok) live in a TOML file read with ReadSettings. A missing file is
// created with DefaultSettings.
package config
