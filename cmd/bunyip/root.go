package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/bunyip/pkg/agentfarm"
	"github.com/entrhq/bunyip/pkg/config"
	"github.com/entrhq/bunyip/pkg/logging"
)

// Shared CLI flags
var (
	cfgFile  string
	farmName string
	user     string
	pass     string
	askPass  bool
	silent   bool
	verbose  bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bunyip",
		Short: "Launch remote browsers against a tester server",
		Long: `bunyip starts browsers at BrowserStack or SauceLabs and points them at a
tester server. Servers that are only reachable from this machine are
exposed through the farm's tunnel first.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&farmName, "farm", "f", string(agentfarm.DefaultKind), "agent farm: saucelabs or browserstack")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "username at the agent farm")
	rootCmd.PersistentFlags().StringVarP(&pass, "pass", "p", "", "password or access key at the agent farm")
	rootCmd.PersistentFlags().BoolVar(&askPass, "ask-pass", false, "prompt for the password")
	rootCmd.PersistentFlags().BoolVarP(&silent, "silent", "S", false, "only print errors")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "print debug output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(workersCmd())
	rootCmd.AddCommand(killCmd())
	rootCmd.AddCommand(killAllCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadSettings merges the config file, .env files, the environment, the
// keyring and flags, in increasing order of precedence.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("farm") || cfg.Farm == "" {
		cfg.Farm = farmName
	}
	if flags.Changed("user") {
		cfg.User = user
	}
	if flags.Changed("pass") {
		cfg.Pass = pass
	}
	switch {
	case silent:
		cfg.Verbosity = "quiet"
	case verbose:
		cfg.Verbosity = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if askPass {
		p, err := promptPassword(fmt.Sprintf("%s access key: ", cfg.Farm), os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
		cfg.Pass = p
	}
	if err := cfg.ResolvePassword(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a logger for cfg's verbosity that writes to the
// console and to the run's log file.
func newLogger(cfg *config.Config) *logging.Logger {
	var out io.Writer = os.Stderr
	fileLog, err := logging.NewLogger("bunyip")
	if err == nil {
		out = io.MultiWriter(os.Stderr, fileLog.Writer())
	}

	logger := logging.New("bunyip", out)
	logger.SetLevel(logging.ParseLevel(cfg.Verbosity))
	if err == nil {
		cobra.OnFinalize(func() { fileLog.Close() })
		logger.Debugf("Run %s logging to %s", logger.RunID(), fileLog.LogPath())
	}
	return logger
}

// openFarm loads settings and builds the farm. Configuration errors are
// fatal.
func openFarm(cmd *cobra.Command) (*agentfarm.AgentFarm, *config.Config, *logging.Logger, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)

	kind, err := cfg.Kind()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	af, err := agentfarm.New(kind, agentfarm.Options{
		User:           cfg.User,
		Pass:           cfg.Pass,
		TunnelKey:      cfg.TunnelKey,
		ToolsDir:       cfg.ToolsDir,
		SessionTimeout: cfg.SessionTimeout,
		Progress:       newProgressPrinter(os.Stderr),
		Logger:         logger,
	})
	var cfgErr *agentfarm.ConfigurationError
	if errors.As(err, &cfgErr) {
		log.Fatalf("Configuration error: %v", err)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return af, cfg, logger, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bunyip v%s\n", version)
		},
	}
}
