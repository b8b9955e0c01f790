// Package mongostore implements the query.Backend interface over a MongoDB
// database. Models map to collections named after their table name, and
// columns to document fields. Relation joins are a SQL concern and are
// rejected here; sparse references still work because the foreign-key value
// is stored as a plain field.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ormkit/ormkit/pkg/query"
)

// Store executes abstract statements against a mongo database.
type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the structured logger used for statement tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an already-connected database handle.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the mongo deployment at dsn and selects dbName.
func Open(ctx context.Context, dsn, dbName string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connecting: %w", err)
	}
	return New(client.Database(dbName), opts...), nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *Store) collection(stmt query.Statement) *mongo.Collection {
	return s.db.Collection(stmt.StatementModel().TableName)
}

// Execute runs a write statement.
func (s *Store) Execute(ctx context.Context, stmt query.Statement) (query.ExecResult, error) {
	switch st := stmt.(type) {
	case *query.InsertStatement:
		docs := make([]any, len(st.Rows))
		for i, row := range st.Rows {
			doc := bson.M{}
			for c, col := range st.Columns {
				doc[col.DBName] = row[c]
			}
			docs[i] = doc
		}
		s.logger.DebugContext(ctx, "inserting documents", "collection", st.Model.TableName, "count", len(docs))
		if _, err := s.collection(st).InsertMany(ctx, docs); err != nil {
			return query.ExecResult{}, err
		}
		return query.ExecResult{RowsAffected: int64(len(docs))}, nil

	case *query.UpdateStatement:
		filter, err := buildFilter(st.Where)
		if err != nil {
			return query.ExecResult{}, err
		}
		set := bson.M{}
		for _, cv := range st.Set {
			set[cv.Field.DBName] = cv.Value
		}
		s.logger.DebugContext(ctx, "updating documents", "collection", st.Model.TableName, "filter", filter)
		res, err := s.collection(st).UpdateMany(ctx, filter, bson.M{"$set": set})
		if err != nil {
			return query.ExecResult{}, err
		}
		return query.ExecResult{RowsAffected: res.ModifiedCount}, nil

	case *query.DeleteStatement:
		filter, err := buildFilter(st.Where)
		if err != nil {
			return query.ExecResult{}, err
		}
		s.logger.DebugContext(ctx, "deleting documents", "collection", st.Model.TableName, "filter", filter)
		res, err := s.collection(st).DeleteMany(ctx, filter)
		if err != nil {
			return query.ExecResult{}, err
		}
		return query.ExecResult{RowsAffected: res.DeletedCount}, nil

	default:
		return query.ExecResult{}, fmt.Errorf("mongostore: statement %T is not executable", stmt)
	}
}

// FetchAll runs a select and returns every matching document as a row.
func (s *Store) FetchAll(ctx context.Context, stmt query.Statement) ([]query.Row, error) {
	st, ok := stmt.(*query.SelectStatement)
	if !ok {
		return nil, fmt.Errorf("mongostore: statement %T is not fetchable", stmt)
	}
	if err := rejectJoins(st); err != nil {
		return nil, err
	}
	filter, err := buildFilter(st.Where)
	if err != nil {
		return nil, err
	}

	if st.CountOnly {
		n, err := s.collection(st).CountDocuments(ctx, filter)
		if err != nil {
			return nil, err
		}
		return []query.Row{{"count": n}}, nil
	}

	findOpts := options.Find()
	if st.Limit >= 0 {
		findOpts.SetLimit(int64(st.Limit))
	}
	if st.Offset >= 0 {
		findOpts.SetSkip(int64(st.Offset))
	}
	if len(st.OrderBy) > 0 {
		sort := bson.D{}
		for _, ord := range st.OrderBy {
			direction := 1
			if ord.Desc {
				direction = -1
			}
			sort = append(sort, bson.E{Key: ord.Field.DBName, Value: direction})
		}
		findOpts.SetSort(sort)
	}

	s.logger.DebugContext(ctx, "finding documents", "collection", st.Model.TableName, "filter", filter)
	cursor, err := s.collection(st).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []query.Row
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		row := make(query.Row, len(doc))
		for key, value := range doc {
			if key == "_id" {
				continue
			}
			row[key] = normalizeBSON(value)
		}
		out = append(out, row)
	}
	return out, cursor.Err()
}

// FetchOne returns the first matching document, or nil when nothing matches.
func (s *Store) FetchOne(ctx context.Context, stmt query.Statement) (query.Row, error) {
	st, ok := stmt.(*query.SelectStatement)
	if !ok {
		return nil, fmt.Errorf("mongostore: statement %T is not fetchable", stmt)
	}
	one := *st
	if one.Limit < 0 {
		one.Limit = 1
	}
	results, err := s.FetchAll(ctx, &one)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func rejectJoins(st *query.SelectStatement) error {
	if len(st.Joins) > 0 {
		return fmt.Errorf("mongostore: relation traversal requires a SQL backend")
	}
	return nil
}

// buildFilter translates predicate leaves into a mongo filter document.
// Leaves combine by AND, which is the implicit semantics of a compound
// filter document; repeated fields are wrapped in $and explicitly.
func buildFilter(leaves []query.Leaf) (bson.M, error) {
	filter := bson.M{}
	var extra []bson.M
	for _, leaf := range leaves {
		if leaf.Relation != "" {
			return nil, fmt.Errorf("mongostore: predicate on relation %q requires a SQL backend", leaf.Relation)
		}
		condition, err := leafCondition(leaf)
		if err != nil {
			return nil, err
		}
		if _, taken := filter[leaf.Field.DBName]; taken {
			extra = append(extra, bson.M{leaf.Field.DBName: condition})
			continue
		}
		filter[leaf.Field.DBName] = condition
	}
	if len(extra) > 0 {
		and := []bson.M{filter}
		filter = bson.M{"$and": append(and, extra...)}
	}
	return filter, nil
}

func leafCondition(leaf query.Leaf) (any, error) {
	switch leaf.Op {
	case query.OpExact:
		return leaf.Value, nil
	case query.OpIExact:
		return bson.M{"$regex": "^" + regexp.QuoteMeta(fmt.Sprintf("%v", leaf.Value)) + "$", "$options": "i"}, nil
	case query.OpContains:
		return bson.M{"$regex": regexp.QuoteMeta(fmt.Sprintf("%v", leaf.Value))}, nil
	case query.OpIContains:
		return bson.M{"$regex": regexp.QuoteMeta(fmt.Sprintf("%v", leaf.Value)), "$options": "i"}, nil
	case query.OpLT:
		return bson.M{"$lt": leaf.Value}, nil
	case query.OpLTE:
		return bson.M{"$lte": leaf.Value}, nil
	case query.OpGT:
		return bson.M{"$gt": leaf.Value}, nil
	case query.OpGTE:
		return bson.M{"$gte": leaf.Value}, nil
	case query.OpIn:
		return bson.M{"$in": leaf.Value}, nil
	default:
		return nil, fmt.Errorf("mongostore: unsupported operator %q", leaf.Op)
	}
}

// normalizeBSON converts driver-specific scalar types into the plain Go
// values the materializer coerces from.
func normalizeBSON(value any) any {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.ObjectID:
		return v.Hex()
	case primitive.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeBSON(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalizeBSON(item)
		}
		return out
	case time.Time:
		return v.UTC()
	default:
		return value
	}
}
