package structuredstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aleutian-labs/toolscout/internal/filter"
)

// MongoStore is the concrete StructuredStore backed by MongoDB. Bound here
// because the structured store's operator contract in SPEC_FULL.md §4.4 —
// in, =, !=, <, <=, >, >=, elemMatch — maps almost one-to-one onto Mongo's
// native query operators, the closest possible domain fit among the
// teacher's dependency set (DESIGN.md).
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters []filter.Predicate, limit int) ([]Row, error) {
	query := bson.M{}
	for _, f := range filters {
		clause, err := translatePredicate(f)
		if err != nil {
			return nil, fmt.Errorf("translating filter %q: %w", f.Field, err)
		}
		query[f.Field] = clause
	}

	opts := options.Find().SetLimit(int64(limit))
	cursor, err := s.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var rows []Row
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding document from %q: %w", collection, err)
		}
		id := fmt.Sprintf("%v", doc["_id"])
		delete(doc, "_id")
		rows = append(rows, Row{ID: id, Payload: doc})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating cursor for %q: %w", collection, err)
	}
	return rows, nil
}

// translatePredicate maps one closed-set FilterPredicate operator onto its
// native Mongo query operator.
func translatePredicate(f filter.Predicate) (any, error) {
	switch f.Operator {
	case filter.OpIn:
		return bson.M{"$in": f.Value}, nil
	case filter.OpEq:
		return f.Value, nil
	case filter.OpNeq:
		return bson.M{"$ne": f.Value}, nil
	case filter.OpLt:
		return bson.M{"$lt": f.Value}, nil
	case filter.OpLte:
		return bson.M{"$lte": f.Value}, nil
	case filter.OpGt:
		return bson.M{"$gt": f.Value}, nil
	case filter.OpGte:
		return bson.M{"$gte": f.Value}, nil
	case filter.OpElemMatch:
		cond, ok := f.Value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("elemMatch value must be a nested condition map")
		}
		return bson.M{"$elemMatch": translateElemMatchInner(cond)}, nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", f.Operator)
	}
}

// translateElemMatchInner maps the nested price/billingPeriod condition
// produced by internal/filter into Mongo's elemMatch sub-document syntax,
// e.g. {"price": {">=": 20, "<=": 100}} -> {"price": {"$gte":20,"$lte":100}}.
func translateElemMatchInner(cond map[string]any) bson.M {
	out := bson.M{}
	for field, value := range cond {
		nested, ok := value.(map[string]any)
		if !ok {
			out[field] = value
			continue
		}
		clause := bson.M{}
		for op, v := range nested {
			switch op {
			case ">=":
				clause["$gte"] = v
			case "<=":
				clause["$lte"] = v
			case "<":
				clause["$lt"] = v
			case ">":
				clause["$gt"] = v
			case "!=":
				clause["$ne"] = v
			default:
				clause[op] = v
			}
		}
		out[field] = clause
	}
	return out
}
