package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"inferencepipeline/internal/logging"
)

var ErrInvalidRequest = errors.New("missing required parameters: input_bucket or output_bucket")

// Request is the Step Functions input for one batch.
type Request struct {
	InputBucket  string `json:"input_bucket"`
	OutputBucket string `json:"output_bucket"`
	InputPrefix  string `json:"input_prefix"`
}

// JobDescriptor is one item of the Inline Map fan-out.
type JobDescriptor struct {
	InputBucket  string `json:"input_bucket"`
	InputKey     string `json:"input_key"`
	OutputBucket string `json:"output_bucket"`
	OutputKey    string `json:"output_key"`
}

type ObjectStore interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Preparer struct {
	s3  ObjectStore
	ddb LedgerClient

	manifestPrefix string
	runsTable      string
	runsTTLSeconds int64

	newRunID func() string
}

// NewPreparer wires S3 and DynamoDB from cfg.
//
// Env:
// - MANIFEST_PREFIX (optional) write a Parquet manifest per run to the output bucket
// - BATCH_RUNS_TABLE (optional) record each run in DynamoDB
// - BATCH_RUNS_TTL_SECONDS (default "604800")
func NewPreparer(cfg aws.Config) *Preparer {
	return &Preparer{
		s3:             s3.NewFromConfig(cfg),
		ddb:            dynamodb.NewFromConfig(cfg),
		manifestPrefix: strings.TrimSpace(os.Getenv("MANIFEST_PREFIX")),
		runsTable:      strings.TrimSpace(os.Getenv("BATCH_RUNS_TABLE")),
		runsTTLSeconds: runsTTLSeconds(),
		newRunID:       uuid.NewString,
	}
}

func runsTTLSeconds() int64 {
	v := strings.TrimSpace(os.Getenv("BATCH_RUNS_TTL_SECONDS"))
	if v == "" {
		return defaultRunsTTLSeconds
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return defaultRunsTTLSeconds
	}
	return n
}

// Handle lists every object under input_prefix and returns one JobDescriptor
// per object, in listing order. Folder markers are skipped. The returned list
// is the Inline Map's items array, so nothing is returned on a listing error.
func (p *Preparer) Handle(ctx context.Context, req Request) ([]JobDescriptor, error) {
	klog.InfoS("Received batch request", "inputBucket", req.InputBucket, "outputBucket", req.OutputBucket, "inputPrefix", req.InputPrefix)

	if strings.TrimSpace(req.InputBucket) == "" || strings.TrimSpace(req.OutputBucket) == "" {
		klog.ErrorS(ErrInvalidRequest, "Rejecting batch request")
		return nil, ErrInvalidRequest
	}

	klog.V(logging.DEBUG).InfoS("Listing objects", "location", fmt.Sprintf("s3://%s/%s", req.InputBucket, req.InputPrefix))

	jobs, err := p.listJobs(ctx, req)
	if err != nil {
		klog.ErrorS(err, "Failed to prepare batch", "location", fmt.Sprintf("s3://%s/%s", req.InputBucket, req.InputPrefix))
		return nil, err
	}

	runID := p.newRunID()
	klog.InfoS("Prepared batch", "runID", runID, "jobs", len(jobs))

	if len(jobs) > 0 {
		p.recordRun(ctx, runID, req, jobs)
	}
	return jobs, nil
}

func (p *Preparer) listJobs(ctx context.Context, req Request) ([]JobDescriptor, error) {
	jobs := make([]JobDescriptor, 0, 64)

	pages := s3.NewListObjectsV2Paginator(p.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(req.InputBucket),
		Prefix: aws.String(req.InputPrefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 ListObjectsV2 %s: %w", req.InputBucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || isFolderMarker(key) {
				continue
			}
			jobs = append(jobs, JobDescriptor{
				InputBucket:  req.InputBucket,
				InputKey:     key,
				OutputBucket: req.OutputBucket,
				OutputKey:    OutputKey(key, req.InputPrefix),
			})
		}
	}
	return jobs, nil
}

// recordRun writes the optional manifest and ledger entry. Neither may fail
// the run: the workflow only consumes the returned list.
func (p *Preparer) recordRun(ctx context.Context, runID string, req Request, jobs []JobDescriptor) {
	manifestKey := ""
	if p.manifestPrefix != "" {
		key := ManifestKey(p.manifestPrefix, runID)
		if err := p.writeManifest(ctx, req.OutputBucket, key, runID, jobs); err != nil {
			klog.ErrorS(err, "Failed to write batch manifest", "runID", runID, "bucket", req.OutputBucket, "key", key)
		} else {
			manifestKey = key
			klog.V(logging.DEBUG).InfoS("Wrote batch manifest", "runID", runID, "key", key)
		}
	}

	if p.runsTable != "" {
		rec := newRunRecord(runID, req, len(jobs), manifestKey, p.runsTTLSeconds)
		if err := PutRunRecord(ctx, p.ddb, p.runsTable, rec); err != nil {
			klog.ErrorS(err, "Failed to record batch run", "runID", runID, "table", p.runsTable)
		}
	}
}
