package health

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// DocumentStoreIndicatorName is the outcome name of the MongoDB probe.
const DocumentStoreIndicatorName = "mongodb"

// DocumentStoreIndicator pings the primary of a MongoDB deployment.
// The client is owned by the caller.
type DocumentStoreIndicator struct {
	client *mongo.Client
}

// NewDocumentStoreIndicator creates a new DocumentStoreIndicator.
func NewDocumentStoreIndicator(client *mongo.Client) *DocumentStoreIndicator {
	return &DocumentStoreIndicator{client: client}
}

// Name implements Indicator.
func (d *DocumentStoreIndicator) Name() string {
	return DocumentStoreIndicatorName
}

// Check implements Indicator.
func (d *DocumentStoreIndicator) Check(ctx context.Context) Result {
	if d.client == nil {
		return Down(DocumentStoreIndicatorName,
			errs.Unavailable(DocumentStoreIndicatorName, errors.New("client not initialized")))
	}

	if err := d.client.Ping(ctx, readpref.Primary()); err != nil {
		return Down(DocumentStoreIndicatorName, errs.Unavailable(DocumentStoreIndicatorName, err))
	}

	return Up(DocumentStoreIndicatorName, nil)
}
