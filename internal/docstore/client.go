// Package docstore implements the outbreak engine's record readers and alert
// store on Cloud Firestore, for deployments that keep patient data in the
// document store instead of PostgreSQL.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Collection names.
const (
	CollectionMedicalRecords = "medicalRecords"
	CollectionWaterQuality   = "waterQualityReports"
	CollectionUsers          = "users"
	CollectionAlerts         = "outbreakAlerts"
	CollectionActiveMarkers  = "activeOutbreakAlerts"
)

// NewClient creates a Firestore client. credentialsB64 is a base64-encoded
// service-account JSON; when empty, application default credentials (or the
// emulator named by FIRESTORE_EMULATOR_HOST) are used.
func NewClient(ctx context.Context, projectID, credentialsB64 string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsB64 != "" {
		creds, err := base64.StdEncoding.DecodeString(credentialsB64)
		if err != nil {
			return nil, fmt.Errorf("decoding firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return client, nil
}

// HashKey returns the hex SHA-256 of s, used as a deterministic document id
// for values that may contain characters Firestore ids reject.
func HashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Pinger checks Firestore reachability for the health endpoint.
type Pinger struct {
	client *firestore.Client
}

// NewPinger creates a Pinger.
func NewPinger(client *firestore.Client) *Pinger {
	return &Pinger{client: client}
}

// Ping reads at most one alert document.
func (p *Pinger) Ping(ctx context.Context) error {
	iter := p.client.Collection(CollectionAlerts).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}
