package mapty

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
)

// LambdaFunc handles a single api gateway request
type LambdaFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// LambdaHandler proxies api gateway requests to the echo engine
func LambdaHandler(el *echoadapter.EchoLambda) LambdaFunc {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return el.ProxyWithContext(ctx, req)
	}
}
