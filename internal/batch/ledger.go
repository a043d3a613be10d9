package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const defaultRunsTTLSeconds = 7 * 24 * 60 * 60

type LedgerClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// RunRecord mirrors the BATCH_RUNS_TABLE item. ExpiresAt is the table's TTL attribute.
type RunRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	InputBucket  string `dynamodbav:"InputBucket"`
	InputPrefix  string `dynamodbav:"InputPrefix"`
	OutputBucket string `dynamodbav:"OutputBucket"`
	JobCount     int    `dynamodbav:"JobCount"`
	ManifestKey  string `dynamodbav:"ManifestKey,omitempty"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	ExpiresAt    int64  `dynamodbav:"ExpiresAt"`
}

func RunPK(runID string) string {
	return "RUN#" + runID
}

func newRunRecord(runID string, req Request, jobCount int, manifestKey string, ttlSeconds int64) RunRecord {
	now := time.Now().UTC()
	return RunRecord{
		PK:           RunPK(runID),
		SK:           "BATCH",
		InputBucket:  req.InputBucket,
		InputPrefix:  req.InputPrefix,
		OutputBucket: req.OutputBucket,
		JobCount:     jobCount,
		ManifestKey:  manifestKey,
		CreatedAt:    now.Format(time.RFC3339),
		ExpiresAt:    now.Unix() + ttlSeconds,
	}
}

// PutRunRecord stores rec. A run id is written at most once.
func PutRunRecord(ctx context.Context, ddb LedgerClient, table string, rec RunRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	_, err = ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("ledger PutItem: %w", err)
	}
	return nil
}
