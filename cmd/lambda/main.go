package main

import (
	"context"
	"log"
	"os"

	"maxtrade/cmd"
	"maxtrade/internal/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"
)

type lambdaHandler struct {
	ginLambda *ginadapter.GinLambda
	logger    *zap.SugaredLogger
}

func (m lambdaHandler) Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	m.logger.Debugw("lambda request", "method", req.HTTPMethod, "path", req.Path)
	return m.ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	cfg, err := config.Load(os.Getenv("MAXTRADE_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	deps, err := cmd.InitializeDependencies(cfg)
	if err != nil {
		log.Fatal(err)
	}
	// the runtime freezes rather than exits, so this rarely fires
	defer deps.Close()

	handler := lambdaHandler{
		ginLambda: ginadapter.New(deps.ApiHandler.InitializeRouterEngine()),
		logger:    deps.Logger,
	}
	lambda.Start(handler.Handler)
}
