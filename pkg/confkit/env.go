package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads API keys and DSNs from a .env file before any config
// is read. ENV_FILE names the file explicitly; otherwise .env in the working
// directory and then the project root are tried. Variables already set in
// the process win unless DOTENV_OVERLOAD=1. NO_DOTENV=1 disables loading.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}

	if f := os.Getenv("ENV_FILE"); f != "" {
		_ = load(f)
		return
	}
	for _, p := range dotenvCandidates() {
		if exists(p) {
			_ = load(p)
			return
		}
	}
}

func dotenvCandidates() []string {
	out := []string{".env"}
	if root, err := ProjectRoot(); err == nil {
		if p := filepath.Join(root, ".env"); p != ".env" {
			out = append(out, p)
		}
	}
	return out
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
