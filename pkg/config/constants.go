package config

// EnvPrefix is applied by envconfig on top of the explicit variable names.
const EnvPrefix = "digimart"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "DIGIMART_DB_DSN"
	EnvDBHost = "DIGIMART_DB_HOST"
	EnvDBUser = "DIGIMART_DB_USER"
	EnvDBName = "DIGIMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
