package app

import (
	"context"
	"time"

	"github.com/csdept/csweb/internal/config"
)

// updateTableMetrics refreshes the row-count gauges until ctx is done.
func (a *Application) updateTableMetrics(ctx context.Context) {
	a.logger.Debug("Table metrics job started")
	defer a.logger.Debug("Table metrics job stopped")

	a.recordTableMetrics(ctx)

	ticker := time.NewTicker(config.TableCountInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordTableMetrics(ctx)
		}
	}
}

func (a *Application) recordTableMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	for table, n := range a.tableCounts(ctx) {
		a.metrics.SetTableRows(table, n)
	}
}

// runBackups uploads a snapshot once per backup interval until ctx is done.
func (a *Application) runBackups(ctx context.Context) {
	log := a.logger.WithModule("backup")
	log.WithField("interval", a.cfg.BackupInterval.String()).Info("Backup job started")
	defer log.Debug("Backup job stopped")

	ticker := time.NewTicker(a.cfg.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.performBackup(ctx)
		}
	}
}

func (a *Application) performBackup(ctx context.Context) {
	log := a.logger.WithModule("backup")

	backupCtx, cancel := context.WithTimeout(ctx, config.BackupUpload)
	defer cancel()

	res, err := a.backups.Run(backupCtx, a.db)
	if err != nil {
		log.WithError(err).Error("Backup failed")
		return
	}
	if res.Skipped {
		log.WithField("key", res.Key).Debug("Backup slot already uploaded")
		return
	}
	log.WithFields(map[string]any{
		"key":    res.Key,
		"bytes":  res.Size,
		"pruned": res.Pruned,
	}).Info("Backup uploaded")
}
