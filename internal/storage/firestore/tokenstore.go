package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// FirestoreStore implements push.TokenStore using Google Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// deviceRecord is the internal DB representation of one registered device.
type deviceRecord struct {
	Platform  string    `firestore:"platform"`
	Token     string    `firestore:"token"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// RegisterToken upserts a device. The doc ID is a hash of the token, which
// deduplicates re-registrations and avoids hot-spotting on sequential IDs.
func (s *FirestoreStore) RegisterToken(ctx context.Context, user urn.URN, token push.DeviceToken) error {
	record := deviceRecord{
		Platform:  string(token.Platform),
		Token:     token.Token,
		UpdatedAt: time.Now(),
	}

	_, err := s.deviceRef(user, hashToken(token.Token)).Set(ctx, record)
	return err
}

// UnregisterToken removes a device. Deleting a document that never existed
// is not an error, which matches the TokenStore contract.
func (s *FirestoreStore) UnregisterToken(ctx context.Context, user urn.URN, token push.DeviceToken) error {
	_, err := s.deviceRef(user, hashToken(token.Token)).Delete(ctx)
	return err
}

// GetTokens returns every registered device for the user. Corrupt rows and
// rows with platforms this build does not know are skipped, not fatal.
func (s *FirestoreStore) GetTokens(ctx context.Context, user urn.URN) ([]push.DeviceToken, error) {
	iter := s.devicesCollection(user).Documents(ctx)
	defer iter.Stop()

	tokens := make([]push.DeviceToken, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			continue
		}
		platform, err := push.ParsePlatform(record.Platform)
		if err != nil || record.Token == "" {
			continue
		}

		tokens = append(tokens, push.DeviceToken{Platform: platform, Token: record.Token})
	}

	return tokens, nil
}

// --- Helpers ---

// deviceRef: users/{userID}/devices/{deviceHash}
func (s *FirestoreStore) deviceRef(user urn.URN, docID string) *firestore.DocumentRef {
	return s.devicesCollection(user).Doc(docID)
}

func (s *FirestoreStore) devicesCollection(user urn.URN) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(user.String()).Collection("devices")
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
