package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	configPath := os.Getenv("CROSSFADE_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	var spotifyService *services.SpotifyService
	if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
		spotifyService = svc
		if token := config.Credentials.Spotify.Token(); token != nil {
			if err := svc.OAuthenticate(ctx, token); err != nil {
				logger.Warn("saved spotify token rejected", "error", err)
			}
		}
	} else {
		logger.Debug("spotify not configured", "error", err)
	}

	youtubeService := services.NewYouTubeService(config.Credentials.YouTube.ProxyURL)
	if path := config.Credentials.YouTube.HeadersPath; path != "" {
		if err := youtubeService.Authenticate(ctx, map[string]string{"auth_file": path}); err != nil {
			logger.Debug("youtube auth file not set", "error", err)
		}
	}

	opts := RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		YouTube:    youtubeService,
		Logger:     logger,
	}
	if spotifyService != nil {
		opts.Spotify = spotifyService
	}
	runner := NewRunner(opts)

	if spotifyService != nil {
		spotifyService.SetTokenRefreshCallback(func(token *oauth2.Token) {
			if err := runner.saveTokens(token); err != nil {
				runner.logger.Warn("failed to persist refreshed spotify token", "error", err)
			}
		})
	}

	app := &cli.Command{
		Name:    "crossfade",
		Usage:   "Match and convert playlists between Spotify & YouTube Music",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log per-query matching detail",
			},
		},
		Before:   runner.before,
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatal("application error", "error", err)
	}
}
