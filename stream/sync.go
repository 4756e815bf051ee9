// Package stream provides DynamoDB Streams handlers that keep denormalized
// user rows in step with the canonical user row.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/keys"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/store"
)

// Users patches the email row of a user.
type Users interface {
	SyncEmailRow(ctx context.Context, email string, diff map[string]any) error
}

// Memberships lists and patches the link rows of a user.
type Memberships interface {
	ListUserOrganizations(ctx context.Context, userID string) ([]model.Membership, error)
	SyncMemberProfile(ctx context.Context, m model.Membership, fullName, email string) error
}

// Handler processes DynamoDB stream events for user profile sync.
type Handler struct {
	users       Users
	memberships Memberships
	logger      *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(users Users, memberships Memberships, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		users:       users,
		memberships: memberships,
		logger:      logger,
	}
}

// HandleUserSync copies changes made to user id rows onto the user's email
// row and membership rows. It is designed to be used as an AWS Lambda
// handler; a returned error makes Lambda retry the batch, which is safe
// because every write it issues is idempotent.
func (h *Handler) HandleUserSync(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeModify) {
		return nil
	}
	key := ConvertStreamKey(record.Change.Keys)
	if !keys.IsUserIDRow(key) {
		return nil
	}

	oldImage, newImage := record.Change.OldImage, record.Change.NewImage
	userID := getStringAttr(newImage, "id")
	email := getStringAttr(newImage, "email")
	fullName := getStringAttr(newImage, "fullName")
	nameChanged := getStringAttr(oldImage, "fullName") != fullName
	loginChanged := getStringAttr(oldImage, "lastLogin") != getStringAttr(newImage, "lastLogin")

	if !nameChanged && !loginChanged {
		return nil
	}
	if userID == "" || email == "" {
		h.logger.Warn("user row image is incomplete", "key", key.String())
		return nil
	}

	diff := map[string]any{"fullName": fullName}
	if lastLogin := getStringAttr(newImage, "lastLogin"); lastLogin != "" {
		diff["lastLogin"] = lastLogin
	}
	if updatedAt := getStringAttr(newImage, "updatedAt"); updatedAt != "" {
		diff["updatedAt"] = updatedAt
	}

	err := h.users.SyncEmailRow(ctx, email, diff)
	switch {
	case apperr.Is(err, apperr.NotFound):
		h.logger.Warn("email row missing, skipping", "userId", userID, "email", email)
	case err != nil:
		return fmt.Errorf("sync email row: %w", err)
	}

	if !nameChanged {
		return nil
	}

	memberships, err := h.memberships.ListUserOrganizations(ctx, userID)
	if err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}
	for _, m := range memberships {
		if err := h.memberships.SyncMemberProfile(ctx, m, fullName, email); err != nil {
			return fmt.Errorf("sync membership %s: %w", m.OrgID, err)
		}
	}

	h.logger.Info("user profile synced",
		"userId", userID,
		"memberships", len(memberships),
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
// Attributes of any other type read as "".
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// ConvertStreamKey converts the key of a stream record to a store.Key.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) store.Key {
	return store.Key{
		PK: getStringAttr(streamKey, store.PartitionKeyAttr),
		SK: getStringAttr(streamKey, store.SortKeyAttr),
	}
}
