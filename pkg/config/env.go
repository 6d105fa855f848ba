package config

const EnvPrefix = "CERTIFY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StorageDriverGCS   = "gcs"
	StorageDriverLocal = "local"
)

const (
	EnvAppEnv          = "CERTIFY_APP_ENV"
	EnvPort            = "CERTIFY_APP_PORT"
	EnvDBDSN           = "CERTIFY_DB_DSN"
	EnvDBHost          = "CERTIFY_DB_HOST"
	EnvDBUser          = "CERTIFY_DB_USER"
	EnvDBName          = "CERTIFY_DB_NAME"
	EnvDBPassword      = "CERTIFY_DB_PASSWORD"
	EnvRedisURL        = "CERTIFY_REDIS_URL"
	EnvJWTSecret       = "CERTIFY_JWT_SECRET"
	EnvJWTIssuer       = "CERTIFY_JWT_ISSUER"
	EnvUseSQLite       = "CERTIFY_USE_SQLITE"
	EnvGCPProjectID    = "CERTIFY_GCP_PROJECT_ID"
	EnvGCSBucket       = "CERTIFY_GCS_BUCKET_NAME"
	EnvStorageDriver   = "CERTIFY_STORAGE_DRIVER"
	EnvStorageLocalDir = "CERTIFY_STORAGE_LOCAL_DIR"
	EnvCatalogPath     = "CERTIFY_CATALOG_PATH"
	EnvPubSubTopic     = "CERTIFY_PUBSUB_CERTIFICATIONS_TOPIC"
	EnvOutboxBatchSize = "CERTIFY_OUTBOX_PUBLISH_BATCH_SIZE"
)
