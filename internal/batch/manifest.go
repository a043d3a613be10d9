package batch

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// ManifestRow is one JobDescriptor as stored in the run manifest.
type ManifestRow struct {
	RunID        string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	InputBucket  string `parquet:"name=input_bucket, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	InputKey     string `parquet:"name=input_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	OutputBucket string `parquet:"name=output_bucket, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	OutputKey    string `parquet:"name=output_key, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ManifestKey returns <prefix>/run=<id>/manifest.parquet.
func ManifestKey(prefix, runID string) string {
	return fmt.Sprintf("%srun=%s/manifest.parquet", ensureTrailingSlash(prefix), runID)
}

func (p *Preparer) writeManifest(ctx context.Context, bucket, key, runID string, jobs []JobDescriptor) error {
	data, err := encodeManifest(runID, jobs)
	if err != nil {
		return err
	}

	_, err = p.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

// encodeManifest writes the rows through a temp file; /tmp is the only
// writable path in Lambda.
func encodeManifest(runID string, jobs []JobDescriptor) ([]byte, error) {
	localPath := filepath.Join(os.TempDir(), "batch_manifest_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return nil, fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(ManifestRow), 1)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0

	for _, j := range jobs {
		row := ManifestRow{
			RunID:        runID,
			InputBucket:  j.InputBucket,
			InputKey:     j.InputKey,
			OutputBucket: j.OutputBucket,
			OutputKey:    j.OutputKey,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return nil, fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read parquet tmp: %w", err)
	}
	return data, nil
}

func ensureTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
