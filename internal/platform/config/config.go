// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"agritrust/pkg/domain"
)

// VerificationCacheTTL bounds how long a farmer's verification flag may be
// served from cache.
var VerificationCacheTTL = 5 * time.Minute

// Server captures the full runtime configuration.
type Server struct {
	Addr       string
	AdminToken string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// Initial role holders, applied only when the stores are empty.
	Owner     domain.Principal
	Verifier  domain.Principal
	Moderator domain.Principal

	RegistrationFee uint64

	// FeeAccount receives registration fees in the ledger.
	FeeAccount domain.Principal

	// LedgerSeed pre-funds in-memory ledger accounts so registrations can pay
	// a non-zero fee in dev deployments.
	LedgerSeed map[domain.Principal]uint64

	// PostgresDSN switches the stores from in-memory to PostgreSQL when set.
	PostgresDSN string

	// RedisURL enables the verification cache when set.
	RedisURL string

	// KafkaBrokers enables the Kafka audit publisher when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	AuditBufferSize int
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("AGRITRUST_ADDR", ":8080"),
		AdminToken:      os.Getenv("AGRITRUST_ADMIN_TOKEN"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envOr("JWT_ISSUER", "agritrust"),
		JWTAudience:     envOr("JWT_AUDIENCE", "agritrust-api"),
		Owner:           domain.Principal(envOr("AGRITRUST_OWNER", "owner")),
		Verifier:        domain.Principal(os.Getenv("AGRITRUST_VERIFIER")),
		Moderator:       domain.Principal(os.Getenv("AGRITRUST_MODERATOR")),
		FeeAccount:      domain.Principal(envOr("AGRITRUST_FEE_ACCOUNT", "agritrust-fees")),
		PostgresDSN:     os.Getenv("AGRITRUST_POSTGRES_DSN"),
		RedisURL:        os.Getenv("AGRITRUST_REDIS_URL"),
		KafkaTopic:      envOr("AGRITRUST_KAFKA_TOPIC", "agritrust.audit"),
		AuditBufferSize: envInt("AGRITRUST_AUDIT_BUFFER", 256),
		RegistrationFee: uint64(envInt("AGRITRUST_REGISTRATION_FEE", 0)),
	}

	if brokers := os.Getenv("AGRITRUST_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if b := strings.TrimSpace(broker); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.LedgerSeed = parseLedgerSeed(os.Getenv("AGRITRUST_LEDGER_SEED"))
	return cfg
}

// parseLedgerSeed reads comma-separated principal:amount pairs. Malformed
// entries are skipped, matching how the other env helpers fall back.
func parseLedgerSeed(raw string) map[domain.Principal]uint64 {
	if raw == "" {
		return nil
	}
	seed := make(map[domain.Principal]uint64)
	for _, pair := range strings.Split(raw, ",") {
		principal, amount, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || principal == "" {
			continue
		}
		n, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			continue
		}
		seed[domain.Principal(principal)] = n
	}
	if len(seed) == 0 {
		return nil
	}
	return seed
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
