package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names a .env file that takes precedence over the --env flag.
const EnvFileVar = "LORESMITH_ENV_FILE"

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}
	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load overlays the first .env file it finds onto the process environment:
// $LORESMITH_ENV_FILE, then the --env value, then its basename, then the
// default. It returns the file used.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	if custom := strings.TrimSpace(os.Getenv(EnvFileVar)); custom != "" {
		if err := godotenv.Overload(custom); err == nil {
			return custom, nil
		}
	}

	requested := ""
	if l.value != nil {
		requested = strings.TrimSpace(*l.value)
	}
	if requested == "" {
		requested = l.defaultPath
	}

	candidates := []string{requested}
	if base := filepath.Base(requested); base != "" && base != requested {
		candidates = append(candidates, base)
	}
	if requested != l.defaultPath {
		candidates = append(candidates, l.defaultPath)
	}
	for _, path := range candidates {
		if err := godotenv.Overload(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("failed to load env file from %s", requested)
}
