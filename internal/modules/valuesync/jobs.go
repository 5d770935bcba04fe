package valuesync

import (
	"fmt"

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

// Refresh cadences. Higher-value tiers are refreshed more often because their
// prices move the orders the most.
const (
	ScheduleHighTierRefresh   = "0 0 * * *"   // daily at midnight
	ScheduleMediumTierRefresh = "0 0 */2 * *" // midnight, every 2nd day
	ScheduleLowTierRefresh    = "0 0 */3 * *" // midnight, every 3rd day
)

// TierRefreshJob adapts a tier refresh to the scheduler's Job interface.
type TierRefreshJob struct {
	svc  *Service
	tier domain.ValueTier
}

// NewTierRefreshJob creates a refresh job for one value tier
func NewTierRefreshJob(svc *Service, tier domain.ValueTier) *TierRefreshJob {
	return &TierRefreshJob{svc: svc, tier: tier}
}

// Name returns the job name for scheduler logging
func (j *TierRefreshJob) Name() string {
	return fmt.Sprintf("refresh_%s_value_cards", j.tier)
}

// Run refreshes the job's tier
func (j *TierRefreshJob) Run() error {
	return j.svc.RefreshTier(j.tier)
}
