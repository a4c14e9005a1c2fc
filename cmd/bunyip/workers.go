package main

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/bunyip/pkg/agentfarm"
	"github.com/entrhq/bunyip/pkg/farm"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [pattern]",
		Short: "Display agents available from the agent farm",
		Long:  "Display agents available from the agent farm, optionally filtered by a glob over id and name, e.g. 'fire*'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			af, _, _, err := openFarm(cmd)
			if err != nil {
				return err
			}

			pattern := ""
			if len(args) > 0 {
				pattern = args[0]
			}
			agents, err := af.List(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), agentTable(agents))
			return nil
		},
	}
}

func workersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Display workers running at the agent farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			af, _, _, err := openFarm(cmd)
			if err != nil {
				return err
			}

			remote, err := remoteWorkers(cmd, af)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), workerTable(af.Workers(), remote))
			return nil
		},
	}
}

func killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill ID",
		Short: "Kill a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			af, _, logger, err := openFarm(cmd)
			if err != nil {
				return err
			}

			id := args[0]
			if err := killWorker(cmd.Context(), af, id); err != nil {
				return err
			}
			logger.Infof("Worker %s killed", id)
			return nil
		},
	}
}

// killWorker kills id through the vendor API when the farm has one.
// Otherwise only sessions tracked by this process can be killed.
func killWorker(ctx context.Context, af *agentfarm.AgentFarm, id string) error {
	if inspector, ok := af.Adapter().(farm.RemoteInspector); ok {
		return inspector.KillRemote(ctx, id)
	}
	for _, w := range af.Workers() {
		if w.SessionID == id {
			return af.Kill(ctx, id)
		}
	}
	return fmt.Errorf("worker %s is not tracked by this process; %s sessions can only be killed by the process that started them", id, af.Kind())
}

func killAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill-all",
		Short: "Kill all workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			af, _, logger, err := openFarm(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			inspector, ok := af.Adapter().(farm.RemoteInspector)
			if !ok {
				return af.KillAll(ctx)
			}

			workers, err := inspector.RemoteWorkers(ctx)
			if err != nil {
				return err
			}
			p := pool.New().WithErrors().WithContext(ctx)
			for _, w := range workers {
				p.Go(func(ctx context.Context) error {
					if err := inspector.KillRemote(ctx, w.ID); err != nil {
						return fmt.Errorf("kill %s: %w", w.ID, err)
					}
					logger.Infof("Worker %s killed", w.ID)
					return nil
				})
			}
			return p.Wait()
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Display the account status at the agent farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			af, _, _, err := openFarm(cmd)
			if err != nil {
				return err
			}

			inspector, ok := af.Adapter().(farm.RemoteInspector)
			if !ok {
				return fmt.Errorf("%s does not report account status", af.Kind())
			}
			status, err := inspector.Status(cmd.Context())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(status)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func remoteWorkers(cmd *cobra.Command, af *agentfarm.AgentFarm) ([]farm.RemoteWorker, error) {
	inspector, ok := af.Adapter().(farm.RemoteInspector)
	if !ok {
		return nil, nil
	}
	return inspector.RemoteWorkers(cmd.Context())
}
