package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AntonStoeckl/active-record-orm-go/config"
	"github.com/AntonStoeckl/active-record-orm-go/internal/demo"
	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/sqladapter"
)

// session is one connection plus the engine working on it.
type session struct {
	cfg    config.Config
	handle *config.Handle
	engine *orm.Engine
}

func openSession(ctx context.Context, opts *RootOptions, logOutput io.Writer) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))

	defs, err := loadModels(opts.Models)
	if err != nil {
		return nil, err
	}

	registry, err := orm.NewRegistry(cfg.RegistryOptions()...)
	if err != nil {
		return nil, err
	}

	if err = registry.Register(defs...); err != nil {
		return nil, err
	}

	handle, err := config.Open(ctx, cfg, sqladapter.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	engine, err := orm.NewEngine(registry, handle.Adapter, append(cfg.EngineOptions(), orm.WithLogger(logger))...)
	if err != nil {
		handle.Close()
		return nil, err
	}

	return &session{cfg: cfg, handle: handle, engine: engine}, nil
}

func (s *session) Close() {
	s.handle.Close()
}

func loadModels(path string) ([]orm.ModelDef, error) {
	if path == "" {
		return demo.DefaultModels()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models: %w", err)
	}

	return demo.LoadModels(raw)
}
