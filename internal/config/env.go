package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// PiHelperEnvPath is where pi-helper writes the current network state.
const PiHelperEnvPath = "/run/pi-helper.env"

// EnvLookup reads a dotenv file and returns a lookup that prefers the file
// and falls back to the process environment. The file is rewritten while
// the daemon runs, so it is fresher than the environment it started with.
// A missing file yields a lookup over the process environment alone.
func EnvLookup(path string) (func(string) string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.Getenv, nil
		}
		return os.Getenv, fmt.Errorf("read env file: %w", err)
	}
	return func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	}, nil
}
