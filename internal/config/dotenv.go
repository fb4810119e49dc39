package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

var loadDotEnv = godotenv.Load

// LoadDotEnv loads KEY=value pairs from files (default ".env") into the
// process environment. Variables already set are left alone and missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if err := loadDotEnv(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
