package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs
	BlobBasePath string

	SiteID string // stamps the event log; one per school deployment

	JWTSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string
}

// FromEnv loads .env first (missing file is fine) and then reads the
// environment. Defaults target the single-school LAN deployment.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:      addr,
		PublicURL:     os.Getenv("PUBLIC_URL"),
		DBDriver:      envOr("DB_DRIVER", "sqlite"),
		DBDSN:         envOr("DB_DSN", ""),
		BlobDriver:    envOr("BLOB_DRIVER", "fs"),
		BlobBasePath:  envOr("BLOB_BASE_PATH", "./data"),
		SiteID:        envOr("SITE_ID", "local"),
		JWTSecret:     envOr("JWT_SECRET", "studyhall-dev-secret"),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:   csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:3010"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
