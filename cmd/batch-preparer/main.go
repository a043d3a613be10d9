package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"k8s.io/klog/v2"

	"inferencepipeline/internal/batch"
	"inferencepipeline/internal/logging"
)

func main() {
	logging.InitFromEnv()
	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		klog.Fatalf("load aws config: %v", err)
	}

	h := batch.NewPreparer(cfg)
	lambda.Start(h.Handle)
}
