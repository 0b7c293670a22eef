package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eikrem/stravadump/sd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "stravadump",
	Short: "A tool to sync Strava activities and photos to local files",
	Long: `Stravadump incrementally exports your Strava activity history and
photos into a local directory. It authenticates once, fetches only what
is new since the last run, and never re-fetches what is already cached.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync activities and photos from Strava",
	Long: `Sync the activity catalog, activity details, photo metadata and photo
files from Strava into the export directory. Safe to re-run; cached
data is never fetched twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")

		// Gather configuration from flags and viper. Application
		// credentials come from config or environment only, so they
		// never end up in shell history.
		config := sd.SyncConfig{
			ClientID:     viper.GetString("client_id"),
			ClientSecret: viper.GetString("client_secret"),
			ExportDir:    viper.GetString("export_dir"),
			RedirectAddr: viper.GetString("redirect_addr"),
			JSONMode:     jsonMode,
		}

		// Call the business logic
		return sd.Sync(config)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Viper defaults
	viper.SetDefault("export_dir", "~/.stravadump/export")
	viper.SetDefault("redirect_addr", "localhost:3000")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stravadump/stravadump.yaml)")
	rootCmd.PersistentFlags().String("export_dir", "", "Directory for exported data (default: ~/.stravadump/export)")
	viper.BindPFlag("export_dir", rootCmd.PersistentFlags().Lookup("export_dir"))

	// Sync command flags
	syncCmd.Flags().String("redirect-addr", "", "Address for the one-time OAuth redirect listener (default: localhost:3000)")
	viper.BindPFlag("redirect_addr", syncCmd.Flags().Lookup("redirect-addr"))
	syncCmd.Flags().Bool("json", false, "Output structured JSON logs instead of interactive mode")

	// Bind environment variables
	viper.BindEnv("client_id", "STRAVA_CLIENT_ID")
	viper.BindEnv("client_secret", "STRAVA_CLIENT_SECRET")
	viper.BindEnv("export_dir", "SD_EXPORT_DIR")
	viper.BindEnv("redirect_addr", "SD_REDIRECT_ADDR")

	// Add sync command to root
	rootCmd.AddCommand(syncCmd)
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in ~/.stravadump/ with name "stravadump" (without extension).
		viper.AddConfigPath(filepath.Join(home, ".stravadump"))
		viper.SetConfigName("stravadump")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in silently (logging is via LOG_LEVEL env var)
	viper.ReadInConfig()
}
