package config

const (
	EnvPrefix = "PVB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PVB_APP_ENV"
	EnvPort     = "PVB_APP_PORT"
	EnvLogLevel = "PVB_LOG_LEVEL"

	EnvDBDSN  = "PVB_DB_DSN"
	EnvDBHost = "PVB_DB_HOST"
	EnvDBUser = "PVB_DB_USER"
	EnvDBName = "PVB_DB_NAME"

	EnvRedisURL = "PVB_REDIS_URL"

	EnvJWTSecret  = "PVB_JWT_SECRET"
	EnvJWTIssuer  = "PVB_JWT_ISSUER"
	EnvJWTExpMins = "PVB_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey   = "PVB_STRIPE_API_KEY"
	EnvStripeSecret   = "PVB_STRIPE_SECRET"
	EnvStripeCurrency = "PVB_STRIPE_CURRENCY"
	EnvFrontendURL    = "PVB_FRONTEND_URL"

	EnvGCPProjectID       = "PVB_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic  = "PVB_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub    = "PVB_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvCronInterval       = "PVB_CRON_INTERVAL"
	EnvOutboxRetentionDay = "PVB_OUTBOX_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
