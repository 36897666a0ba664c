// Package main - консольный клиент GPA Tracker.
//
// gpactl переводит оценки, показывает сводку по истории, запускает сверку,
// редактирует историю в бэкенде и применяет миграции схемы отчётов.
// Токен, полученный командой login, сохраняется в файл и используется
// следующими командами.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gpa-hub/gpa-tracker/config"
	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/external/gpaapi"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Логи клиента нужны только при отладке.
	level := slog.LevelWarn
	if os.Getenv("GPACTL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cli := &commandLine{
		out:       os.Stdout,
		tokenFile: tokenFilePath(),
		log:       log,
	}
	cli.connect = func(ctx context.Context) (backend, error) {
		return newClient(cfg, cli.tokenFile, log), nil
	}
	cli.openReports = func(ctx context.Context) (conformance.Repository, func(), error) {
		dbURL := cfg.Database.ConnectionURL()
		if dbURL == "" {
			return newSessionReports(), func() {}, nil
		}
		conn, err := postgres.Open(ctx, dbURL, poolOptions(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return postgres.NewReportRepository(conn), conn.Close, nil
	}
	cli.openSchema = func(ctx context.Context) (schemaMigrator, func(), error) {
		dbURL := cfg.Database.ConnectionURL()
		if dbURL == "" {
			return nil, nil, errNoDB
		}
		conn, err := postgres.Open(ctx, dbURL, poolOptions(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return postgres.NewMigrator(conn), conn.Close, nil
	}

	if err := cli.run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newClient создаёт клиент бэкенда. Токен из окружения важнее сохранённого.
func newClient(cfg *config.Config, tokenFile string, log *slog.Logger) *gpaapi.Client {
	clientCfg := gpaapi.DefaultClientConfig(cfg.Backend.BaseURL)
	clientCfg.Token = cfg.Backend.Token
	if clientCfg.Token == "" {
		clientCfg.Token = readToken(tokenFile)
	}
	clientCfg.Timeout = cfg.Backend.RequestTimeout
	clientCfg.MaxAttempts = cfg.Backend.MaxAttempts
	clientCfg.RetryInitialDelay = cfg.Backend.RetryDelay
	clientCfg.MaxConcurrency = cfg.Backend.MaxConcurrency
	clientCfg.Logger = log
	return gpaapi.NewClient(clientCfg)
}

// tokenFilePath возвращает GPACTL_TOKEN_FILE или ~/.config/gpactl/token.
func tokenFilePath() string {
	if p := os.Getenv("GPACTL_TOKEN_FILE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gpactl", "token")
}

func readToken(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, 8<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// poolOptions переносит настройки пула из конфигурации.
func poolOptions(cfg *config.Config) postgres.PoolOptions {
	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = cfg.Database.MaxConns
	opts.MinConns = cfg.Database.MinConns
	opts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	opts.ConnectTimeout = cfg.Database.ConnectTimeout
	return opts
}
