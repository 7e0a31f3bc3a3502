package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services/identity"
)

// maxOrphanAttempts caps retries per orphan; rows past the cap are left for
// operator review instead of hammering the provider forever.
const maxOrphanAttempts = 10

// SweepOrphanedIdentities retries provider-side deletion for identities that
// split from local state: external creates whose local transaction rolled
// back, and local deletes whose external delete failed. This is the
// reconciliation half of the dual-write trade-off; no compensating local
// writes ever happen here.
func (m *CronManager) SweepOrphanedIdentities() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "sweep_orphaned_identities"

	var orphans []model.ProvisioningOrphan
	err := m.db.Where("resolved_at IS NULL AND attempts < ?", maxOrphanAttempts).
		Order("created_at ASC").
		Limit(100).
		Find(&orphans).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query orphans: %w", err))
		return
	}

	if len(orphans) == 0 {
		m.logJobComplete(jobName, "No orphaned identities to sweep")
		return
	}

	resolved := 0
	failed := 0

	for i := range orphans {
		orphan := &orphans[i]

		// A later retry may have re-attached the identity to an account; in
		// that case the split healed itself and the identity must survive.
		var adopted int64
		if err := m.db.Model(&model.Account{}).
			Where("identity_id = ?", orphan.IdentityID).
			Count(&adopted).Error; err != nil {
			m.logJobError(jobName, fmt.Errorf("failed to check orphan adoption: %w", err))
			return
		}
		if adopted > 0 {
			now := time.Now()
			m.db.Model(orphan).Updates(map[string]interface{}{
				"resolved_at": &now,
				"last_error":  "",
			})
			resolved++
			continue
		}

		err := m.idp.DeleteUser(ctx, orphan.IdentityID)
		if err != nil && !errors.Is(err, identity.ErrNotFound) {
			failed++
			m.db.Model(orphan).Updates(map[string]interface{}{
				"attempts":   orphan.Attempts + 1,
				"last_error": err.Error(),
			})
			continue
		}

		// Deleted upstream, or already gone; either way the split is healed.
		now := time.Now()
		m.db.Model(orphan).Updates(map[string]interface{}{
			"attempts":    orphan.Attempts + 1,
			"resolved_at": &now,
			"last_error":  "",
		})
		resolved++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Resolved %d orphaned identities, %d still failing", resolved, failed))
}

// CleanupRevokedTokens removes blacklist entries whose tokens have expired
// anyway.
func (m *CronManager) CleanupRevokedTokens() {
	jobName := "cleanup_revoked_tokens"

	result := m.db.Where("expires_at < ?", time.Now()).Delete(&model.RevokedToken{})
	if result.Error != nil {
		m.logJobError(jobName, result.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Removed %d expired token entries", result.RowsAffected))
}

// CleanupCronLogs trims job log rows older than 30 days.
func (m *CronManager) CleanupCronLogs() {
	jobName := "cleanup_cron_logs"

	cutoff := time.Now().AddDate(0, 0, -30)
	result := m.db.Where("started_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, result.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Removed %d old job logs", result.RowsAffected))
}
