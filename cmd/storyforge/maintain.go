package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/storyforge/internal/config"
)

var maintainConfigPath string

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run the background maintenance daemon",
	Long: `Starts the cron-scheduled maintenance jobs (fact promotion,
continuity reconciliation, RAG rebuild, draft cleanup) on the
maintenance_low task queue lane and blocks until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		daemonCfg, err := config.LoadDaemonConfig(cmd.Flags(), maintainConfigPath)
		if err != nil {
			return fmt.Errorf("loading daemon config: %w", err)
		}

		if err := c.StartMaintenance(daemonCfg); err != nil {
			return fmt.Errorf("starting maintenance scheduler: %w", err)
		}

		fmt.Println("maintenance scheduler running, press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	},
}

func init() {
	maintainCmd.Flags().StringVar(&maintainConfigPath, "daemon-config", "", "YAML file overlaying maintenance cadence defaults")
	// Flag names match DaemonConfig's viper keys exactly so
	// v.BindPFlags resolves them without a separate key translation
	// table.
	maintainCmd.Flags().Int("maintenance.fact_promotion_schedule_hours", 0, "fact promotion cadence in hours")
	maintainCmd.Flags().Int("maintenance.fact_promotion_threshold", 0, "minimum recurrence count before a fact is promoted")
	maintainCmd.Flags().String("maintenance.rag_rebuild_interval", "", "RAG rebuild cadence, e.g. 24h")
	maintainCmd.Flags().String("maintenance.draft_cleanup_interval", "", "draft cleanup cadence, e.g. 12h")
	maintainCmd.Flags().String("maintenance.reconciliation_interval", "", "continuity reconciliation cadence, e.g. 1h")
}
