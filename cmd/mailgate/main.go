package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"litmail.art/mailgate/handlers"
	"litmail.art/mailgate/internal/config"
	"litmail.art/mailgate/internal/gateway"
	"litmail.art/mailgate/internal/session"
	"litmail.art/mailgate/internal/submit"
	"litmail.art/mailgate/pkg/models/connector"
	"litmail.art/mailgate/pkg/utils"
)

func main() {
	app := &cli.App{
		Name:  "mailgate",
		Usage: "session-authenticated HTTP gateway for a mailbox provider's IMAP and SMTP",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP gateway",
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(_ *cli.Context) error {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down telemetry", slog.Any("error", err))
		}
	}()

	conn, err := connector.NewConnector(
		connector.WithEndpoint(cfg.IMAPAddr(), nil),
		connector.WithTimeout(cfg.Timeout),
		connector.WithFolders(cfg.Folders),
		connector.WithLogger(logger),
		connector.WithCtx(ctx),
	)
	if err != nil {
		return err
	}

	svc, err := gateway.NewService(
		gateway.WithSessionStore(session.NewStore()),
		gateway.WithConnector(conn),
		gateway.WithSubmitter(submit.NewSubmitter(cfg.SMTPHost, cfg.SMTPAddr(), cfg.Timeout)),
		gateway.WithFolders(cfg.Folders),
		gateway.WithLogger(logger),
		gateway.WithCtx(ctx),
	)
	if err != nil {
		return err
	}

	web := fiber.New()
	web.Use(recover.New())
	web.Use(otelfiber.Middleware())

	if cfg.CORSOrigins != "" {
		web.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
		}))
	} else {
		web.Use(cors.New())
	}

	handlers.New(svc).Register(web)

	// Frontend, when deployed next to the gateway.
	web.Static("/static", "./static")
	web.Get("/", func(c *fiber.Ctx) error {
		return c.SendFile("./static/index.html")
	})

	logger.Info("Listening", slog.String("addr", cfg.BindAddr))
	return web.Listen(cfg.BindAddr)
}
