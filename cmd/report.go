package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courierflow/dispatch/app"
	"github.com/courierflow/dispatch/config"
	"github.com/courierflow/dispatch/infra/logger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print time window performance metrics",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("report-command").Errorf("service close: %v", err)
		}
	}()

	m, err := svc.Windows.GetPerformanceMetrics(context.Background())
	if err != nil {
		return fmt.Errorf("performance metrics: %w", err)
	}
	fmt.Printf("completed windows: %d\n", m.CompletedCount)
	fmt.Printf("violation rate: %.3f\n", m.ViolationRate)
	fmt.Printf("avg width: %.0fs\n", m.AvgWidthSeconds)
	fmt.Printf("avg abs deviation: %.0fs\n", m.AvgAbsDeviationSeconds)
	for method, count := range m.CountByMethod {
		fmt.Printf("  %s: %d\n", method, count)
	}
	return nil
}
