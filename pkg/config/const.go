package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names
// so the prefix only matters for unannotated additions.
const EnvPrefix = "MESA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "MESA_APP_ENV"
	EnvDBDSN  = "MESA_DB_DSN"
	EnvDBHost = "MESA_DB_HOST"
	EnvDBUser = "MESA_DB_USER"
	EnvDBName = "MESA_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
