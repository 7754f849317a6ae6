package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DaemonConfig is the subset of configuration the `storyforge maintain`
// background daemon needs: the fact-promotion cadence and which
// maintenance jobs run. Unlike Config (plain YAML + validator), this
// layer is resolved flags > env > yaml via viper, since a long-running
// daemon is normally reconfigured at the command line or through its
// process environment rather than by editing a file.
type DaemonConfig struct {
	FactPromotionScheduleHours int
	FactPromotionThreshold     int
	RAGRebuildInterval         time.Duration
	DraftCleanupInterval       time.Duration
	ReconciliationInterval     time.Duration
}

// LoadDaemonConfig binds the given flag set (owned by the caller,
// typically the cobra "maintain" command) and layers viper's sources:
// explicit flags win, then STORYFORGE_-prefixed environment variables,
// then the YAML config file at configPath.
func LoadDaemonConfig(flags *pflag.FlagSet, configPath string) (*DaemonConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("STORYFORGE")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading daemon config: %w", err)
			}
		}
	}

	v.SetDefault("maintenance.fact_promotion_schedule_hours", 6)
	v.SetDefault("maintenance.fact_promotion_threshold", 3)
	v.SetDefault("maintenance.rag_rebuild_interval", "24h")
	v.SetDefault("maintenance.draft_cleanup_interval", "12h")
	v.SetDefault("maintenance.reconciliation_interval", "1h")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding daemon flags: %w", err)
		}
	}

	ragRebuild, err := time.ParseDuration(v.GetString("maintenance.rag_rebuild_interval"))
	if err != nil {
		return nil, fmt.Errorf("parsing rag_rebuild_interval: %w", err)
	}
	draftCleanup, err := time.ParseDuration(v.GetString("maintenance.draft_cleanup_interval"))
	if err != nil {
		return nil, fmt.Errorf("parsing draft_cleanup_interval: %w", err)
	}
	reconciliation, err := time.ParseDuration(v.GetString("maintenance.reconciliation_interval"))
	if err != nil {
		return nil, fmt.Errorf("parsing reconciliation_interval: %w", err)
	}

	return &DaemonConfig{
		FactPromotionScheduleHours: v.GetInt("maintenance.fact_promotion_schedule_hours"),
		FactPromotionThreshold:     v.GetInt("maintenance.fact_promotion_threshold"),
		RAGRebuildInterval:         ragRebuild,
		DraftCleanupInterval:       draftCleanup,
		ReconciliationInterval:     reconciliation,
	}, nil
}

// CronSpec returns the standard 5-field cron expression for the
// fact-promotion job at its configured hourly cadence.
func (d *DaemonConfig) CronSpec() string {
	return fmt.Sprintf("0 */%d * * *", d.FactPromotionScheduleHours)
}
