// Command sync is the Lambda entrypoint attached to the table's stream. It
// copies user profile changes onto the denormalized user rows.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/accounts/internal/config"
	"github.com/jacentio/accounts/internal/ddbclient"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/internal/password"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/store"
	"github.com/jacentio/accounts/stream"
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
	users := model.NewUsers(s, password.NewHasher(cfg.BcryptCost))
	orgs := model.NewOrganizations(s, users)

	h := stream.NewHandler(users, orgs, logger)
	lambda.Start(h.HandleUserSync)
}
