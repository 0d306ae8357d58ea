// Package mongo stores check reports in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/reqlint/pkg/check"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/store"
)

const (
	DefaultDatabase   = "reqlint"
	DefaultCollection = "reports"
	connectTimeout    = 5 * time.Second
)

// Options configures the connection.
type Options struct {
	URI        string
	Database   string // default: DefaultDatabase
	Collection string // default: DefaultCollection
}

// Store is a MongoDB-backed [store.Store].
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects to MongoDB, verifies the server is reachable and ensures the
// listing indexes exist.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "mongo uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "connect to mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "ping mongo")
	}

	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "manifest", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "create indexes")
	}
	return &Store{client: client, coll: coll}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) SaveReport(ctx context.Context, r *check.Report) error {
	if r == nil || r.ID == "" {
		return errs.New(errs.ErrCodeInvalidInput, "report has no id")
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "save report %s", r.ID)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*check.Report, error) {
	var r check.Report
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.New(errs.ErrCodeReportNotFound, "report %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "load report %s", id)
	}
	return &r, nil
}

func (s *Store) ListReports(ctx context.Context, opts store.ListOptions) ([]store.ReportSummary, error) {
	opts = opts.WithDefaults()
	filter := bson.M{}
	if opts.Manifest != "" {
		filter["manifest"] = opts.Manifest
	}
	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(opts.Limit)).
		SetProjection(bson.M{"_id": 1, "manifest": 1, "digest": 1, "created_at": 1, "summary": 1})

	cur, err := s.coll.Find(ctx, filter, find)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "list reports")
	}
	out := []store.ReportSummary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "decode reports")
	}
	return out, nil
}
