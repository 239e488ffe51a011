package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/smartcost/backend/internal/model"
)

// objectPutter is the subset of the S3 client used by S3Exporter.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes each batch as a JSON-lines object for BI tools to pick up.
// Objects are keyed prefix/subscription/yyyy-mm-dd/<evaluated-at>.jsonl.
type S3Exporter struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Exporter creates an exporter for bucket.
func NewS3Exporter(client objectPutter, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix}
}

func (e *S3Exporter) Name() string { return "s3" }

// exportRow is one JSON line: an alert flattened with its batch context.
type exportRow struct {
	SubscriptionID string `json:"subscription_id"`
	EvaluatedAt    string `json:"evaluated_at"`
	model.CostAlert
}

// Publish uploads one object per batch.
func (e *S3Exporter) Publish(ctx context.Context, batch Batch) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range batch.Alerts {
		row := exportRow{
			SubscriptionID: batch.SubscriptionID,
			EvaluatedAt:    batch.EvaluatedAt.UTC().Format(time.RFC3339),
			CostAlert:      a,
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode alert %s: %w", a.ID, err)
		}
	}

	key := e.ObjectKey(batch)
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", e.bucket, key, err)
	}
	return nil
}

// ObjectKey returns the key a batch is written under.
func (e *S3Exporter) ObjectKey(batch Batch) string {
	return path.Join(e.prefix, batch.SubscriptionID, model.DayKey(batch.EvaluatedAt),
		batch.EvaluatedAt.UTC().Format("150405.000000000")+".jsonl")
}
