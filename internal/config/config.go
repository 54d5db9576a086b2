package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DomainName     string
	AllowedOrigins []string
}

// LoadConfig reads configuration from the environment, with a local .env
// file taking effect when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	origins := []string{"*"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return &Config{
		DomainName:     os.Getenv("DOMAIN_NAME"),
		AllowedOrigins: origins,
	}
}
