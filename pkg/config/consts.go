package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "VELAFIT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VELAFIT_DB_DSN"
	EnvDBHost = "VELAFIT_DB_HOST"
	EnvDBUser = "VELAFIT_DB_USER"
	EnvDBName = "VELAFIT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
