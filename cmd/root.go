package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/starlight-qa/starlight/internal/config"
	"github.com/starlight-qa/starlight/internal/utils"
	"github.com/starlight-qa/starlight/pkg/star"
	"github.com/starlight-qa/starlight/pkg/storage"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	     _             _ _       _     _
	 ___| |_ __ _ _ __| (_) __ _| |__ | |_
	/ __| __/ _' | '__| | |/ _' | '_ \| __|
	\__ \ || (_| | |  | | | (_| | | | | |_
	|___/\__\__,_|_|  |_|_|\__, |_| |_|\__|
	                       |___/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "starlight",
	Short: "A lighter front end for STAR device test reports.",
	Long: LOGO + `starlight fetches device test reports from a STAR server, keeps only the
test cases that changed between the last two binaries, and shows them filtered
by category, priority and variant, from your command line or your browser.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.starlight.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/starlight/starlight.sqlite)")
	rootCmd.PersistentFlags().String("envfile", "", "Legacy JSON file holding STAR_URL, STAR_USER_AGENT and SID")

	viper.BindPFlag(config.KeyDBPath, rootCmd.PersistentFlags().Lookup("dbpath"))
	viper.BindPFlag(config.KeyEnvFile, rootCmd.PersistentFlags().Lookup("envfile"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".starlight")
		viper.SetConfigType("yaml")
	}

	// STARLIGHT_STAR_SID overrides star.sid and so on.
	viper.SetEnvPrefix("starlight")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".starlight.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		} else {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)

	if err := config.ApplyEnvFile(viper.GetViper()); err != nil {
		utils.Log.Warnf("Ignoring env file: %v", err)
	}
}

// newSTARClient builds a STAR client from the config and the --proxy flag.
func newSTARClient(cmd *cobra.Command) (*star.Client, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	client, err := star.NewClient(config.Star(viper.GetViper(), proxy), star.WithLogger(utils.Log))
	if err != nil {
		return nil, fmt.Errorf("%w: set star.url in ~/.starlight.yaml or STARLIGHT_STAR_URL", err)
	}
	return client, nil
}

// openDB opens the category store, creating its directory if needed.
func openDB() (*storage.DB, string, error) {
	configured, err := config.DBPath(viper.GetViper())
	if err != nil {
		return nil, "", err
	}
	path, err := utils.GetAbsDBPath(configured)
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open DB %s: %w", path, err)
	}
	return db, path, nil
}
