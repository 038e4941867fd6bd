package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	logx "vtreporter/pkg/logx"
)

// MongoConfig connects the reader to the two logical databases. The URIs may
// point at the same cluster; they are kept separate because production does
// not co-locate job records and app configs.
type MongoConfig struct {
	DriveURI string
	WacURI   string
	DriveDB  string
	WacDB    string
}

// Mongo implements JobStore and AppConfigStore against the drives and
// wac_configs collections.
type Mongo struct {
	driveClient *mongo.Client
	wacClient   *mongo.Client

	jobs *mongo.Collection
	apps *mongo.Collection

	log logx.Logger
}

var (
	_ JobStore       = (*Mongo)(nil)
	_ AppConfigStore = (*Mongo)(nil)
)

// OpenMongo connects both clients and pings them once so misconfiguration
// fails at startup rather than on the first scheduled run.
func OpenMongo(ctx context.Context, cfg MongoConfig, log logx.Logger) (*Mongo, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.DriveURI) == "" {
		return nil, fmt.Errorf("drive store URI is required")
	}
	if strings.TrimSpace(cfg.WacURI) == "" {
		// Single-cluster deployments reuse the drive URI.
		cfg.WacURI = cfg.DriveURI
	}

	driveClient, err := connect(ctx, cfg.DriveURI)
	if err != nil {
		return nil, fmt.Errorf("%w: connect drive db: %v", ErrUnavailable, err)
	}

	wacClient := driveClient
	if cfg.WacURI != cfg.DriveURI {
		wacClient, err = connect(ctx, cfg.WacURI)
		if err != nil {
			_ = driveClient.Disconnect(ctx)
			return nil, fmt.Errorf("%w: connect wac db: %v", ErrUnavailable, err)
		}
	}

	m := &Mongo{
		driveClient: driveClient,
		wacClient:   wacClient,
		jobs:        driveClient.Database(cfg.DriveDB).Collection("drives"),
		apps:        wacClient.Database(cfg.WacDB).Collection("wac_configs"),
		log:         log,
	}
	log.Info("document store connected",
		logx.String("drive_db", cfg.DriveDB),
		logx.String("wac_db", cfg.WacDB),
	)
	return m, nil
}

func connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	err := m.driveClient.Disconnect(ctx)
	if m.wacClient != m.driveClient {
		if e := m.wacClient.Disconnect(ctx); err == nil {
			err = e
		}
	}
	return err
}

// driveDoc mirrors the pipeline's schema-less documents. Owner ids appear as
// ObjectIDs in drives but as plain strings in wac_configs, so both are decoded
// loosely and stringified.
type driveDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	VideoAppID any                `bson:"videoAppId,omitempty"`
	Title      string             `bson:"title,omitempty"`
	EncodeID   string             `bson:"encodeId,omitempty"`
	Metadata   struct {
		Duration int64 `bson:"duration,omitempty"`
		Size     int64 `bson:"size,omitempty"`
	} `bson:"videoMetadata,omitempty"`
	Webhook struct {
		Status    string `bson:"status,omitempty"`
		SourceURL string `bson:"sourceUrl,omitempty"`
	} `bson:"webhookResponse,omitempty"`
	CreatedAt time.Time `bson:"createdAt,omitempty"`
}

type wacDoc struct {
	VideoAppID any    `bson:"videoAppId,omitempty"`
	AppName    string `bson:"appName,omitempty"`
	AppURL     string `bson:"appUrl,omitempty"`
}

func (m *Mongo) ListJobs(ctx context.Context, f JobFilter) ([]JobRecord, error) {
	filter := bson.M{"createdAt": bson.M{"$gte": f.Since}}
	if f.OnlyInQueue {
		filter["webhookResponse.status"] = StatusInQueue
		filter["encodeId"] = bson.M{"$exists": true, "$ne": ""}
	}
	if f.RequireOwnerID {
		filter["videoAppId"] = bson.M{"$exists": true, "$ne": nil}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cur, err := m.jobs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var docs []driveDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode jobs: %v", ErrUnavailable, err)
	}

	out := make([]JobRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, JobRecord{
			ID:          d.ID.Hex(),
			OwnerAppID:  stringifyID(d.VideoAppID),
			EncodeID:    d.EncodeID,
			Title:       d.Title,
			DurationSec: d.Metadata.Duration,
			SizeBytes:   d.Metadata.Size,
			Status:      d.Webhook.Status,
			SourceURL:   d.Webhook.SourceURL,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}

func (m *Mongo) GetAppConfigs(ctx context.Context, ownerIDs []string) (map[string]AppConfig, error) {
	result := make(map[string]AppConfig, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return result, nil
	}

	// The join key is stored as a string in wac_configs but callers hold hex
	// ObjectID strings too; match both representations.
	keys := make([]any, 0, len(ownerIDs)*2)
	for _, id := range ownerIDs {
		keys = append(keys, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			keys = append(keys, oid)
		}
	}

	opts := options.Find().SetProjection(bson.M{"videoAppId": 1, "appName": 1, "appUrl": 1})
	cur, err := m.apps.Find(ctx, bson.M{"videoAppId": bson.M{"$in": keys}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup app configs: %v", ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var docs []wacDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode app configs: %v", ErrUnavailable, err)
	}

	for _, d := range docs {
		id := stringifyID(d.VideoAppID)
		if id == "" {
			continue
		}
		result[id] = AppConfig{OwnerAppID: id, AppName: d.AppName, AppURL: d.AppURL}
	}
	return result, nil
}

func stringifyID(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case primitive.ObjectID:
		return x.Hex()
	default:
		return fmt.Sprint(x)
	}
}
