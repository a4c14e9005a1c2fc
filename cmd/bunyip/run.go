package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/bunyip/pkg/config"
	"github.com/entrhq/bunyip/pkg/farm"
	"github.com/entrhq/bunyip/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func runCmd() *cobra.Command {
	var (
		hub      string
		browsers string
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch browsers and point them at the tester server",
		Example: `  bunyip run -f browserstack -u jdoe -p KEY -b "ie:win/8.0,9.0|firefox:mac/19.0"
  bunyip run -H http://localhost:9000 -b browsers.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			af, cfg, logger, err := openFarm(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("hub") {
				cfg.Hub = hub
			}
			if cmd.Flags().Changed("wait") {
				cfg.Wait = wait
			}
			specs := []farm.Spec(cfg.Browsers)
			if cmd.Flags().Changed("browsers") {
				if specs, err = farm.ParseBrowsers(browsers); err != nil {
					return err
				}
			}
			if len(specs) == 0 {
				return fmt.Errorf("no browsers requested, use --browsers")
			}

			target, err := cfg.HubURL()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger.Infof("Requesting %d agents from %s for %s", len(specs), af.Kind(), target)
			results, err := af.Connect(ctx, target.String(), specs...)
			if err != nil {
				shutdown(af.Exit, logger)
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), resultTable(results))
			if len(farm.Failed(results)) == len(results) {
				shutdown(af.Exit, logger)
				return fmt.Errorf("no agent could be started")
			}

			logger.Infof("Workers are running. Press Ctrl+C to stop.")
			<-ctx.Done()

			if cfg.Wait {
				logger.Infof("Leaving tunnels and workers running")
				return nil
			}
			return shutdown(af.Exit, logger)
		},
	}

	cmd.Flags().StringVarP(&hub, "hub", "H", config.DefaultHub, "tester server agents are pointed at")
	cmd.Flags().StringVarP(&browsers, "browsers", "b", "", `browsers to launch, e.g. "ie:win/6.0,7.0|iPhone 3GS:ios/3.0" or a YAML/JSON file`)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "do not shut down tunnels and workers on quit")

	return cmd
}

// shutdown runs exit on a fresh context, since the command context is
// usually cancelled by then.
func shutdown(exit func(context.Context) error, logger *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := exit(ctx); err != nil {
		logger.Errorf("Shutdown incomplete: %v", err)
		return err
	}
	return nil
}
