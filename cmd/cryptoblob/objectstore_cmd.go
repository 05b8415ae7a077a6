package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v3"

	"github.com/tez-capital/cryptoblob/storage/objectstore"
)

// cmdServeObjectstore runs the reference object-store backend server
// standalone, for exercising the objectstore.Client against a real
// HTTP listener instead of an in-process fiber.App.Test round tripper.
func cmdServeObjectstore() *cli.Command {
	return &cli.Command{
		Name:  "serve-objectstore",
		Usage: "run the reference HTTP object-store backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Value: ":8088"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			app := fiber.New(fiber.Config{DisableStartupMessage: true})
			objectstore.NewServer().Register(app, "/objects")

			log := loggerFrom(ctx)
			addr := c.String("listen")
			log.Info("objectstore listening", "addr", addr)
			fmt.Printf("listening on %s\n", addr)
			return app.Listen(addr)
		},
	}
}
