package sd

import (
	"fmt"

	"github.com/eikrem/stravadump/pkg/output"
	"github.com/eikrem/stravadump/strava"
	"github.com/mitchellh/go-homedir"
)

// SyncConfig holds all configuration needed for a sync run
type SyncConfig struct {
	ClientID     string
	ClientSecret string
	ExportDir    string
	RedirectAddr string
	JSONMode     bool
}

// Sync performs one full unattended sync run: acquire credentials,
// update the catalog, resolve every catalog entry's assets.
func Sync(config SyncConfig) error {
	// 1. Setup dependencies
	_, logger, presentation, err := setupDependencies(config)
	if err != nil {
		return err
	}

	// 2. Validate credentials
	if err := validateCredentials(config); err != nil {
		return err
	}

	logger.Info("starting sync run", "export_dir", config.ExportDir)

	// 3. Prepare export store
	store, err := prepareExportStore(config.ExportDir, presentation)
	if err != nil {
		return err
	}

	// 4. Create client and acquire a fresh token
	client := strava.New(config.ClientID, config.ClientSecret)
	token, err := acquireFreshToken(client, store, config, logger, presentation)
	if err != nil {
		return err
	}
	client.SetAccessToken(token.AccessToken)

	// 5. Setup services
	gate := NewRateGate(client, logger.Component("ratelimit"))
	catalogService := NewCatalogService(client, store, gate, logger.Component("catalog"))
	assetService := NewAssetService(client, store, gate, logger.Component("assets"))

	// 6. Sync the catalog
	presentation.ShowProgress("Syncing activity catalog...")
	catalog, err := catalogService.Sync()
	if err != nil {
		presentation.ShowError(err, "Failed to sync activity catalog")
		return err
	}
	presentation.ShowStatus("Catalog holds %d activities", len(catalog))

	// 7. Resolve assets for every catalog entry
	summary := assetService.ResolveAll(catalog, presentation.ShowActivityResult)

	// 8. Show final results
	presentation.ShowFinalResults(summary)
	presentation.ShowJSONResults(summary, config.JSONMode)

	logger.Info("sync completed",
		"activities", summary.Activities,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"errors", summary.Errors)

	return nil
}

// setupDependencies creates the output logger and presentation service
func setupDependencies(config SyncConfig) (*output.OutputLogger, output.Logger, *PresentationService, error) {
	ol, err := output.New(config.JSONMode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create output system: %w", err)
	}

	logger := ol.Component("sync")
	presentation := NewPresentationService(ol)

	return ol, logger, presentation, nil
}

// validateCredentials checks that the application credentials are provided
func validateCredentials(config SyncConfig) error {
	if config.ClientID == "" || config.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret must be provided via config file or environment variables")
	}
	return nil
}

// prepareExportStore expands the export directory and opens the blob store
func prepareExportStore(exportDir string, presentation *PresentationService) (*OSStore, error) {
	expanded, err := homedir.Expand(exportDir)
	if err != nil {
		presentation.ShowError(err, "Failed to expand export directory path")
		return nil, err
	}

	store, err := NewOSStore(expanded)
	if err != nil {
		presentation.ShowError(err, "Failed to create export directory: %s", expanded)
		return nil, err
	}

	return store, nil
}

// acquireFreshToken loads or creates the token and refreshes it once
// for the run. Components downstream receive the credential
// explicitly; nothing reads ambient token state.
func acquireFreshToken(client StravaClient, store Store, config SyncConfig, logger output.Logger, presentation *PresentationService) (strava.Token, error) {
	authFlow := NewAuthCodeFlow(client, config.RedirectAddr, logger.Component("auth"))
	tokenService := NewTokenService(client, store, authFlow, logger.Component("token"))

	token, err := tokenService.Acquire()
	if err != nil {
		presentation.ShowError(err, "Failed to authenticate with Strava")
		return strava.Token{}, err
	}

	token, err = tokenService.EnsureFresh(token)
	if err != nil {
		presentation.ShowError(err, "Failed to refresh Strava credentials")
		return strava.Token{}, err
	}

	presentation.ShowStatus("Authenticated with Strava")
	return token, nil
}
