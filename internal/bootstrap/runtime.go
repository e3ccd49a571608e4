package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"buspass/internal/cache"
	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/models"
	"buspass/internal/observability"
	"buspass/internal/repository"
	"buspass/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to DB and Redis and creates development operators.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.Open(context.Background(), cfg.RedisURL)

	if err := EnsureDevOperators(context.Background(), cfg, repository.NewOperatorRepository(db)); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development operators: %w", err)
	}

	return db, r, nil
}

type credential struct {
	username string
	password string
}

// parseOperatorPairs reads "user:password,user2:password2".
func parseOperatorPairs(raw string) ([]credential, error) {
	var out []credential
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		username, password, ok := strings.Cut(pair, ":")
		username = strings.TrimSpace(username)
		if !ok || username == "" || password == "" {
			return nil, fmt.Errorf("DEV_BOOTSTRAP_OPERATORS entry %q must be username:password", username)
		}
		out = append(out, credential{username: username, password: password})
	}
	return out, nil
}

// EnsureDevOperators creates the operators listed in DEV_BOOTSTRAP_OPERATORS
// outside production. Existing operators are left untouched.
func EnsureDevOperators(ctx context.Context, cfg *config.Config, repo repository.OperatorRepository) error {
	if cfg == nil || cfg.IsProduction() || strings.TrimSpace(cfg.DevBootstrapOperators) == "" {
		return nil
	}
	creds, err := parseOperatorPairs(cfg.DevBootstrapOperators)
	if err != nil {
		return err
	}

	operators := service.NewOperatorService(repo, nil)
	for _, c := range creds {
		_, err := repo.GetByUsername(ctx, strings.ToLower(c.username))
		if err == nil {
			continue
		}
		if !models.IsCode(err, models.CodeNotFound) {
			return err
		}
		if _, err := operators.Create(ctx, service.CreateOperatorInput{Username: c.username, Password: c.password}); err != nil {
			return fmt.Errorf("operator %s: %w", c.username, err)
		}
		observability.GlobalLogger.InfoContext(ctx, "development operator created", slog.String("username", c.username))
	}
	return nil
}
