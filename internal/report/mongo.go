package report

import (
	"context"
	"fmt"

	"github.com/andrej220/wexec/pkg/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// MongoSink stores one document per host.
type MongoSink struct {
	coll  inserter
	close func() error
}

// NewMongoSink writes into coll. closeFn, when not nil, is called by Close.
func NewMongoSink(coll *mongo.Collection, closeFn func() error) *MongoSink {
	return &MongoSink{coll: coll, close: closeFn}
}

func (m *MongoSink) Publish(ctx context.Context, records []models.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, rec := range records {
		docs[i] = rec
	}
	if _, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo: insert outcomes: %w", err)
	}
	return nil
}

func (m *MongoSink) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}
