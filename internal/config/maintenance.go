package config

// MaintenanceConfig governs the background jobs in internal/maintenance,
// including the fact-promotion threshold and its cron cadence.
type MaintenanceConfig struct {
	FactPromotionThreshold     int `yaml:"fact_promotion_threshold" validate:"required,min=1"`
	FactPromotionScheduleHours int `yaml:"fact_promotion_schedule_hours" validate:"required,min=1"`
}

func defaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		FactPromotionThreshold:     3,
		FactPromotionScheduleHours: 6,
	}
}
