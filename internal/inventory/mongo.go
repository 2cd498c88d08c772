package inventory

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Searcher = (*MongoInventory)(nil)

// MongoInventory searches machine documents in a MongoDB collection. Query
// paths map directly onto dotted document paths.
type MongoInventory struct {
	Collection *mongo.Collection
}

func NewMongoInventory(coll *mongo.Collection) *MongoInventory {
	return &MongoInventory{Collection: coll}
}

func (m *MongoInventory) Search(ctx context.Context, query string) ([]Record, error) {
	terms, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := m.Collection.Find(ctx, Filter(terms), opts)
	if err != nil {
		return nil, fmt.Errorf("inventory: MongoDB Find failed: %w", err)
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("inventory: decode document: %w", err)
		}
		attrs, _ := normalize(doc).(map[string]any)
		out = append(out, recordFromMap(attrs))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("inventory: cursor: %w", err)
	}
	return out, nil
}

// Filter translates terms into a bson filter. Every pattern becomes an
// anchored case-insensitive regex; arrays match when any element does.
func Filter(terms []Term) bson.M {
	if len(terms) == 0 {
		return bson.M{}
	}
	and := make(bson.A, 0, len(terms))
	for _, t := range terms {
		and = append(and, bson.M{
			t.Path.String(): primitive.Regex{Pattern: globToRegex(t.Pattern), Options: "i"},
		})
	}
	return bson.M{"$and": and}
}

func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// normalize converts driver document types into plain maps and slices so
// attribute paths can walk them.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	case primitive.ObjectID:
		return x.Hex()
	default:
		return v
	}
}
