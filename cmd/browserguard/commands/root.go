package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/BrowserGuard/internal/config"
	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
)

var (
	startBrowser bool
	daemonMode   bool

	rootCmd = &cobra.Command{
		Use:   "browserguard",
		Short: "BrowserGuard - Browser lockout daemon with scheduled breaks",
		Long: `BrowserGuard watches the titles of open windows. When a title matches the
blacklist (and no whitelist pattern), the browser is killed and locked out for
a while. Independently, a break is enforced at a fixed interval.

Lockouts and breaks survive restarts: state is kept in a JSON file and
reconciled against the clock on startup.`,
		Example: `  # Run the monitoring loop
  browserguard --daemon

  # Start the browser if no lockout or break is active
  browserguard --start-browser

  # Use a specific config file with debug logging
  browserguard -d -c /etc/browserguard.yaml --log-level debug`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
)

func init() {
	rootCmd.Flags().StringP("config", "c", config.DefaultPath, "config file")
	rootCmd.Flags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&startBrowser, "start-browser", false, "start the browser unless locked out or on break, then exit")
	rootCmd.Flags().BoolVarP(&daemonMode, "daemon", "d", false, "run the monitoring loop")
	rootCmd.MarkFlagsMutuallyExclusive("start-browser", "daemon")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.Flags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	viper.SetEnvPrefix("browserguard")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case startBrowser:
		return runStartBrowser(cmd)
	case daemonMode:
		return runDaemon(cmd)
	default:
		return cmd.Help()
	}
}

// loadConfig initializes logging and reads the configuration. Flag and
// environment overrides win over the file.
func loadConfig() (*config.Config, error) {
	override := viper.GetString("log_level")
	if override != "" {
		logger.Init(override, true)
	} else {
		logger.Init("info", true)
	}

	configMgr, err := config.NewManager(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if override != "" {
		configMgr.SetLogLevel(override)
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	logger.WithComponent("main").Debug().Str("path", configMgr.GetConfigPath()).Msg("Configuration loaded")
	return cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
