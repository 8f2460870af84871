package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env.local then .env from the working directory so
// ${VAR} references in the config resolve during expansion. Missing
// files are fine; variables already set in the process environment win.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		err := godotenv.Load(file)
		if err == nil || os.IsNotExist(err) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}
