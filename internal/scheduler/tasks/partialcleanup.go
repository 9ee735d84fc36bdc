package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/model"
	"github.com/pocketsage/pocketsage/internal/scheduler"
)

const PartialCleanupTaskID = "partial-cleanup"

// staleAge is how long an untouched partial file survives before cleanup.
// A paused download resumed within this window keeps its progress.
const staleAge = 7 * 24 * time.Hour

// RegisterPartialCleanupTask registers the stale partial file cleanup task.
// It runs daily at 3 AM and skips the sweep while a download is in flight so
// a live temp file is never removed underneath the transfer.
func RegisterPartialCleanupTask(sched *scheduler.Scheduler, ctrl *model.Controller, storageDir, fileName string, logger zerolog.Logger) error {
	log := logger.With().Str("component", "partial-cleanup").Logger()

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PartialCleanupTaskID,
		Name:        "Partial Download Cleanup",
		Description: "Removes stale partial download files left by interrupted transfers",
		Cron:        "0 3 * * *",
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			if ctrl.State() == model.StateDownloading {
				log.Debug().Msg("Download in progress, skipping partial cleanup")
				return nil
			}
			removed := model.RemoveStalePartials(storageDir, fileName, staleAge, log)
			if removed > 0 {
				log.Info().Int("removed", removed).Msg("Stale partial files cleaned up")
			}
			return nil
		},
	})
}
