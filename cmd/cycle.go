package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courierflow/dispatch/app"
	"github.com/courierflow/dispatch/config"
	"github.com/courierflow/dispatch/infra/logger"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single dispatch cycle and exit",
	RunE:  runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}

func runCycle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("cycle-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Manager.RunCycle(context.Background())
	if err != nil {
		return fmt.Errorf("dispatch cycle: %w", err)
	}
	logg.Infof("cycle %d: %d orders, %d drivers, %d regions, %d assigned in %s",
		res.Cycle, res.Orders, res.Drivers, res.Regions, res.Assigned, res.Duration)
	return nil
}
