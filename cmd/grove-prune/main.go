// Command grove-prune is the AWS Lambda handler that prunes low-ranked
// children from the DynamoDB rank index. It is triggered by the rank
// table's stream.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/grove/backend/dynamo"
	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(os.Getenv("GROVE_CONFIG"))
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("load AWS config", "error", err)
		os.Exit(1)
	}

	backend := dynamo.New(dynamodb.NewFromConfig(awsCfg), cfg.DynamoConfig())
	handler := stream.NewHandler(backend, cfg.PruneConfig(), logger)

	lambda.Start(handler.HandlePrune)
}
