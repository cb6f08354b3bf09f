package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoDB = "rockhunter"

// ConnectMongo connects and pings MongoDB. The database name comes from the
// URI path, falling back to "rockhunter".
func ConnectMongo(ctx context.Context, mongoURI string, logger *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	// Use longer timeout for Atlas connections
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	logger.Info("connecting to MongoDB", "uri", MaskURI(mongoURI))
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(MongoDatabaseName(mongoURI))
	logger.Info("connected to MongoDB", "database", db.Name())
	return client, db, nil
}

// MongoDatabaseName extracts the database from mongodb://host/name?opts.
func MongoDatabaseName(mongoURI string) string {
	rest := mongoURI
	if i := strings.Index(rest, "://"); i != -1 {
		rest = rest[i+3:]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return defaultMongoDB
	}
	name := strings.Split(rest[slash+1:], "?")[0]
	if name == "" {
		return defaultMongoDB
	}
	return name
}

// DisconnectMongo closes the client with a bounded wait.
func DisconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// MaskURI hides the password in user:pass@host URIs for logging.
func MaskURI(uri string) string {
	scheme := ""
	rest := uri
	if i := strings.Index(rest, "://"); i != -1 {
		scheme, rest = rest[:i+3], rest[i+3:]
	}
	at := strings.LastIndex(rest, "@")
	if at == -1 {
		return uri
	}
	userInfo := rest[:at]
	if colon := strings.Index(userInfo, ":"); colon != -1 {
		userInfo = userInfo[:colon] + ":***"
	}
	return scheme + userInfo + rest[at:]
}
