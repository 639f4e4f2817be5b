package config

//nolint:gosec,revive // Environment variable keys are not credentials.
const (
	// Server
	EnvPort            = "CSWEB_PORT"
	EnvLogLevel        = "CSWEB_LOG_LEVEL"
	EnvShutdownTimeout = "CSWEB_SHUTDOWN_TIMEOUT"
	EnvCORSOrigin      = "CSWEB_CORS_ORIGIN"

	// Data
	EnvDBPath         = "CSWEB_DB_PATH"
	EnvUploadDir      = "CSWEB_UPLOAD_DIR"
	EnvUploadMaxBytes = "CSWEB_UPLOAD_MAX_BYTES"

	// Auth
	EnvSSOCookieName  = "CSWEB_SSO_COOKIE_NAME"
	EnvSSOSecret      = "CSWEB_SSO_SECRET"
	EnvAdminBootstrap = "CSWEB_ADMIN_BOOTSTRAP"

	// Admin write rate limit
	EnvAdminWritePerMinute = "CSWEB_ADMIN_WRITE_PER_MINUTE"
	EnvAdminWriteBurst     = "CSWEB_ADMIN_WRITE_BURST"

	// Metrics
	EnvMetricsUsername = "CSWEB_METRICS_USERNAME"
	EnvMetricsPassword = "CSWEB_METRICS_PASSWORD"

	// Sentry
	EnvSentryDSN         = "CSWEB_SENTRY_DSN"
	EnvSentryEnvironment = "CSWEB_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "CSWEB_SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken = "CSWEB_BETTERSTACK_TOKEN"

	// R2 object storage
	EnvR2AccountID       = "CSWEB_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "CSWEB_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "CSWEB_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "CSWEB_R2_BUCKET_NAME"
	EnvR2PublicURL       = "CSWEB_R2_PUBLIC_URL"

	// Backups
	EnvBackupInterval  = "CSWEB_BACKUP_INTERVAL"
	EnvBackupKeyPrefix = "CSWEB_BACKUP_KEY_PREFIX"
	EnvBackupKeep      = "CSWEB_BACKUP_KEEP"
	EnvRestoreOnStart  = "CSWEB_RESTORE_ON_START"
)
