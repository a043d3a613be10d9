// Package errlog is the error-path handler of the inference workflow. It logs
// whatever the workflow engine routes to it and always acknowledges.
package errlog

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"k8s.io/klog/v2"
)

// AckBody is returned to the workflow engine for every event.
const AckBody = `{"message": "Error details logged by InferenceErrorHandler"}`

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	sns      Publisher
	topicArn string
}

// NewHandler wires SNS from cfg.
//
// Env:
// - ERROR_ALERT_TOPIC_ARN (optional) also publish every error event to this topic
func NewHandler(cfg aws.Config) *Handler {
	return &Handler{
		sns:      sns.NewFromConfig(cfg),
		topicArn: strings.TrimSpace(os.Getenv("ERROR_ALERT_TOPIC_ARN")),
	}
}

// Handle never fails: its job is to leave a trace, not to recover.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (Response, error) {
	inv := invocationFromContext(ctx)

	klog.InfoS("--- Inference Batch Error Detected ---")
	klog.InfoS("Lambda invocation",
		"requestID", inv.RequestID,
		"functionName", inv.FunctionName,
		"remainingTimeMs", inv.RemainingMs,
	)

	fields := errorFields(event)
	if fields.Error != "" || fields.Cause != "" {
		klog.InfoS("Workflow error", "error", fields.Error, "cause", fields.Cause)
	}

	pretty := prettyJSON(event)
	klog.InfoS("Error event details (full payload from Step Functions)", "payload", pretty)

	if h.topicArn != "" && h.sns != nil {
		h.publishAlert(ctx, inv, fields, pretty)
	}

	return Response{StatusCode: 200, Body: AckBody}, nil
}

func (h *Handler) publishAlert(ctx context.Context, inv Invocation, fields ErrorFields, payload string) {
	subject := "Inference batch error"
	if fields.Error != "" {
		subject += ": " + fields.Error
	}

	msg := strings.Join([]string{
		"Inference Batch Error",
		"",
		"RequestId: " + inv.RequestID,
		"Function: " + inv.FunctionName,
		"ReceivedAt: " + time.Now().UTC().Format(time.RFC3339),
		"",
		payload,
	}, "\n")

	_, err := h.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(h.topicArn),
		Subject:  aws.String(subjectLine(subject)),
		Message:  aws.String(msg),
	})
	if err != nil {
		klog.ErrorS(err, "Failed to publish error alert", "topicArn", h.topicArn)
	}
}

// Invocation is the part of the Lambda context that gets logged.
type Invocation struct {
	RequestID    string
	FunctionName string
	RemainingMs  int64
}

func invocationFromContext(ctx context.Context) Invocation {
	inv := Invocation{FunctionName: lambdacontext.FunctionName}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		inv.RequestID = lc.AwsRequestID
	}
	if deadline, ok := ctx.Deadline(); ok {
		inv.RemainingMs = max(time.Until(deadline).Milliseconds(), 0)
	}
	return inv
}

// ErrorFields are the Step Functions Catch fields, when the event has them.
type ErrorFields struct {
	Error string
	Cause string
}

func errorFields(event json.RawMessage) ErrorFields {
	var m map[string]any
	if err := json.Unmarshal(event, &m); err != nil {
		return ErrorFields{}
	}
	return ErrorFields{
		Error: pickString(m, "Error", "error"),
		Cause: pickString(m, "Cause", "cause"),
	}
}

func prettyJSON(event json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, event, "", "  "); err != nil {
		return string(event)
	}
	return buf.String()
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// SNS rejects subjects over 100 characters or with anything but printable ASCII.
const maxSubjectLen = 100

func subjectLine(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case r < 0x20 || r > 0x7e:
			return -1
		}
		return r
	}, s)
	if len(s) <= maxSubjectLen {
		return s
	}
	return s[:maxSubjectLen-3] + "..."
}
