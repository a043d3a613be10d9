// Command model-probe sends one sentence through an embedding model and prints
// what comes back. It is a smoke test for model access, not part of the pipeline.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"k8s.io/klog/v2"

	"inferencepipeline/internal/probe"
)

func main() {
	klog.InitFlags(nil)

	configPath := flag.String("config", "", "path to a YAML config file")
	modelID := flag.String("model", "", "model id (overrides config)")
	text := flag.String("text", "", "input text (overrides config)")
	region := flag.String("region", "", "AWS region (overrides config)")
	flag.Parse()
	defer klog.Flush()

	cfg := probe.NewConfig()
	if *configPath != "" {
		if err := cfg.LoadFromYAML(*configPath); err != nil {
			klog.Fatalf("load config %s: %v", *configPath, err)
		}
	}
	if *modelID != "" {
		cfg.ModelID = *modelID
	}
	if *text != "" {
		cfg.Text = *text
	}
	if *region != "" {
		cfg.Region = *region
	}

	ctx := context.Background()

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		klog.Fatalf("load aws config: %v", err)
	}

	id, err := probe.ResolveModelID(ctx, ssm.NewFromConfig(awsCfg), cfg)
	if err != nil {
		klog.Fatalf("resolve model id: %v", err)
	}

	res, err := probe.Embed(ctx, bedrockruntime.NewFromConfig(awsCfg), id, cfg.Text)
	if err != nil {
		klog.Fatalf("embed: %v", err)
	}

	fmt.Println("Model loaded successfully!")
	fmt.Println("Model:", res.ModelID)
	fmt.Println("Input text:", cfg.Text)
	fmt.Println("Input tokens:", res.TokenCount)
	fmt.Println("Model outputs:", res.Shape())
}
