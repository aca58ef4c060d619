package main

import (
	"context"
	"fmt"
	"log"

	"sqlsink/internal/config"
	"sqlsink/internal/ddl"
	"sqlsink/internal/metrics"
	"sqlsink/internal/metrics/datadog"
	"sqlsink/internal/metrics/prompush"
	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
)

// openStore opens the configured backing store.
func openStore(ctx context.Context, cfg config.Sink) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return repo, nil
}

// buildRegistry resolves every configured destination, reflecting tables
// from the store where asked and creating missing tables for static
// destinations with auto_create_table.
func buildRegistry(ctx context.Context, repo storage.Repository, cfg config.Sink) (*schema.Registry, error) {
	reg, err := schema.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, d := range cfg.Destinations {
		dest, err := resolveDestination(ctx, repo, d)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(dest); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveDestination(ctx context.Context, repo storage.Repository, d config.Destination) (*schema.Destination, error) {
	if d.Reflect {
		reflected, err := repo.Reflect(ctx, d.TableName())
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", d.Name, err)
		}
		// The catalog names the table; keep the configured name and batch size.
		dest, err := schema.NewDestination(schema.Spec{
			Name:        d.Name,
			Table:       reflected.Table(),
			Fields:      reflected.Fields(),
			PrimaryKeys: reflected.PrimaryKeys(),
			Mandatory:   reflected.Mandatory(),
			BatchSize:   d.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", d.Name, err)
		}
		log.Printf("setup: reflected dest=%s table=%s fields=%d primary_keys=%v", dest.Name(), dest.Table(), len(dest.Fields()), dest.PrimaryKeys())
		return dest, nil
	}

	dest, err := schema.NewDestination(d.Spec())
	if err != nil {
		return nil, err
	}
	if d.AutoCreateTable {
		td, err := ddl.FromDestination(dest, d.Types)
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", d.Name, err)
		}
		if err := ddl.EnsureTable(ctx, repo, td); err != nil {
			return nil, fmt.Errorf("destination %s: %w", d.Name, err)
		}
	}
	return dest, nil
}

// setupMetrics installs the configured metrics backend and returns a
// function that flushes it at shutdown.
func setupMetrics(cfg config.Sink, verbose bool) (func(), error) {
	done := func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}

	switch cfg.Metrics.Backend {
	case "prometheus", "prom", "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", cfg.Metrics.PushgatewayURL, cfg.Metrics.Backend, cfg.Job)
		metrics.SetBackend(b)
		return done, nil

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			return nil, err
		}
		log.Printf("metrics: addr=%v, backend=datadog, job_name=%v", cfg.Metrics.DatadogAddr, cfg.Job)
		metrics.SetBackend(b)
		return func() {
			done()
			if err := b.Close(); err != nil {
				log.Printf("metrics: close error: %v", err)
			}
		}, nil

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.Metrics.Backend)
		}
		return func() {}, nil

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.Metrics.Backend)
		return func() {}, nil
	}
}
