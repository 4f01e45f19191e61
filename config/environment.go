package config

import (
	"os"
	"strings"
)

// Environment identifies the deployment tier the batch runs under. It is
// resolved from APP_ENV once at startup and defaults to development.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

const appEnvVar = "APP_ENV"

// shorthand spellings seen in deployment manifests
var environmentAliases = map[string]Environment{
	"dev":  Development,
	"prod": Production,
	"stag": Staging,
}

// CurrentEnvironment reads the deployment tier from APP_ENV, normalising
// the common shorthand spellings.
func CurrentEnvironment() Environment {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if raw == "" {
		return Development
	}
	if canonical, ok := environmentAliases[raw]; ok {
		return canonical
	}
	return Environment(raw)
}

// ProductionLike reports whether the tier enforces the stricter
// configuration rules, such as the minimum credential pool size.
func (e Environment) ProductionLike() bool {
	return e == Production || e == Staging
}

// configPath resolves which configuration file to load for the tier. An
// explicitly chosen path always wins; the default path is swapped for the
// tier-specific file when one exists for the tier.
func (e Environment) configPath(path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	tierPath, ok := envConfigPaths[e]
	if !ok {
		return path
	}
	if path == defaultConfigPath || path == tierPath {
		return tierPath
	}
	return path
}
