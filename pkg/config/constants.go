package config

const (
	// EnvPrefix is applied by envconfig to every variable below.
	EnvPrefix = "sipwell"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "SIPWELL_APP_ENV"
	EnvDBDSN  = "SIPWELL_DB_DSN"
	EnvDBHost = "SIPWELL_DB_HOST"
	EnvDBUser = "SIPWELL_DB_USER"
	EnvDBName = "SIPWELL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
