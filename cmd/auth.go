package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/crossfade/internal/server"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authTimeout bounds how long the callback server waits for the browser.
const authTimeout = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	spotify, ok := r.spotify.(services.OAuthService)
	if !ok || spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPathOrDefault())
	}

	token, err := r.doOAuth(ctx, spotify)
	if err != nil {
		return err
	}

	if err := spotify.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to install token: %w", err)
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPathOrDefault())
	r.writePlain("You can now use: crossfade playlists --service spotify\n")
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting OAuth callback server", "addr", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("%w: callback server: %w", shared.ErrServiceUnavailable, err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", shared.ErrTimeout, ctx.Err())
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// YouTubeAuth uploads a ytmusicapi headers file to the proxy's setup endpoint.
func (r *Runner) YouTubeAuth(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = r.config.Credentials.YouTube.HeadersPath
	}
	if path == "" {
		return fmt.Errorf("%w: path to headers JSON", shared.ErrMissingArgument)
	}

	yt, ok := r.youtube.(*services.YouTubeService)
	if !ok || yt == nil {
		return fmt.Errorf("%w: YouTube Music service not initialized", shared.ErrServiceUnavailable)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", shared.ErrInvalidInput, path, err)
	}

	r.logger.Info("uploading auth headers", "path", path)
	if err := yt.UploadAuth(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	return r.writePlain("✓ YouTube Music authentication uploaded\n")
}

// AuthStatus reports whether Spotify holds a token and whether the YouTube proxy is healthy.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.writePlainHeader("Authentication")

	switch svc := r.spotify.(type) {
	case nil:
		r.writePlain("Spotify: ✗ not configured\n")
	case interface{ Ready() error }:
		if err := svc.Ready(); err != nil {
			r.writePlain("Spotify: ✗ not authorized (run 'crossfade auth spotify')\n")
		} else {
			r.writePlain("Spotify: ✓ authorized\n")
		}
	default:
		r.writePlain("Spotify: ? unknown\n")
	}

	yt, ok := r.youtube.(*services.YouTubeService)
	if !ok || yt == nil {
		return r.writePlain("YouTube Music: ✗ not configured\n")
	}

	health, err := yt.Health(ctx)
	if err != nil {
		r.logger.Debug("proxy health check failed", "error", err)
		return r.writePlain("YouTube Music: ✗ proxy unreachable\n")
	}
	if health.Authenticated {
		return r.writePlain("YouTube Music: ✓ authenticated (proxy %s)\n", health.Status)
	}
	return r.writePlain("YouTube Music: ✗ not authenticated (proxy %s)\n", health.Status)
}

func (r *Runner) configPathOrDefault() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}
