// Command api is the Lambda entrypoint behind the API Gateway routes. It
// dispatches each proxied request to the matching account operation.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/accounts/dispatch"
	"github.com/jacentio/accounts/internal/config"
	"github.com/jacentio/accounts/internal/ddbclient"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/internal/password"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/service"
	"github.com/jacentio/accounts/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	client, err := ddbclient.New(context.Background(), cfg)
	if err != nil {
		logger.Error("create dynamodb client", "error", err)
		os.Exit(1)
	}

	s := store.New(client, cfg.Store())
	opts := []model.Option{model.WithStrictUniqueness(cfg.StrictUniqueness)}
	users := model.NewUsers(s, password.NewHasher(cfg.BcryptCost), opts...)
	orgs := model.NewOrganizations(s, users, opts...)

	d := dispatch.New(service.New(users, orgs), logger)
	logger.Info("api ready", "table", s.TableName(), "strictUniqueness", cfg.StrictUniqueness)
	lambda.Start(d.HandleAPIGateway)
}
