package app

import (
	"context"
	"fmt"

	"github.com/andrej220/wexec/internal/inventory"
	"github.com/andrej220/wexec/internal/report"
	"github.com/andrej220/wexec/pkg/config"
	"github.com/andrej220/wexec/pkg/config/mongostore"
)

// BuildSearcher returns the inventory selected by cfg, or nil when none is
// configured. The returned func releases its resources.
func BuildSearcher(cfg config.InventoryConfig) (inventory.Searcher, func() error, error) {
	switch cfg.Kind {
	case "":
		return nil, noop, nil
	case "file":
		return inventory.NewFileInventory(cfg.Path), noop, nil
	case "mongo":
		client, err := mongostore.Connect(cfg.URI)
		if err != nil {
			return nil, noop, fmt.Errorf("inventory: %w", err)
		}
		coll := client.Database(cfg.DBName).Collection(cfg.Collection)
		return inventory.NewMongoInventory(coll), func() error { return client.Disconnect(context.Background()) }, nil
	default:
		return nil, noop, fmt.Errorf("inventory: unknown kind %q", cfg.Kind)
	}
}

// BuildSink returns a sink publishing to every destination in cfg, or nil
// when reporting is off.
func BuildSink(cfg config.ReportConfig) (report.Sink, error) {
	var sinks report.Multi
	if cfg.File != "" {
		sinks = append(sinks, report.NewFileSink(cfg.File))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, report.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	if cfg.Mongo.URI != "" {
		client, err := mongostore.Connect(cfg.Mongo.URI)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("report: %w", err)
		}
		coll := client.Database(cfg.Mongo.DBName).Collection(cfg.Mongo.Collection)
		sinks = append(sinks, report.NewMongoSink(coll, func() error { return client.Disconnect(context.Background()) }))
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func noop() error { return nil }
