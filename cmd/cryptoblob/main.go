// Command cryptoblob packs a directory tree into an encrypted,
// tenant-scoped blob and unpacks it again.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tez-capital/cryptoblob/logging"
)

type loggerCtxKey struct{}
type fileConfigCtxKey struct{}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func fileConfigFrom(ctx context.Context) fileConfig {
	if cfg, ok := ctx.Value(fileConfigCtxKey{}).(fileConfig); ok {
		return cfg
	}
	return fileConfig{}
}

// flagOrConfig returns the flag's value if the user passed it
// explicitly, else falls back to the loaded --config default.
func flagOrConfig(c *cli.Command, flag, fallback string) string {
	if c.IsSet(flag) {
		return c.String(flag)
	}
	if v := c.String(flag); v != "" {
		return v
	}
	return fallback
}

func main() {
	app := &cli.Command{
		Name:  "cryptoblob",
		Usage: "pack and unpack encrypted tenant-scoped directory blobs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML file of flag defaults (log_file, log_level, log_format, master_key_file, keyring_dir)"},
			&cli.StringFlag{Name: "log-file", Usage: "path to a rotating log file (CRYPTOBLOB_LOG_FILE)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error (CRYPTOBLOB_LOG_LEVEL)"},
			&cli.StringFlag{Name: "log-format", Usage: "text|json (CRYPTOBLOB_LOG_FORMAT)"},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			fc, err := loadFileConfig(c.String("config"))
			if err != nil {
				return ctx, err
			}
			ctx = context.WithValue(ctx, fileConfigCtxKey{}, fc)

			cfg := logging.NewConfigFromEnv()
			if fc.LogFile != "" {
				cfg.File = fc.LogFile
			}
			if v := c.String("log-file"); v != "" {
				cfg.File = v
			}
			switch flagOrConfig(c, "log-level", fc.LogLevel) {
			case "debug":
				cfg.Level = slog.LevelDebug
			case "warn":
				cfg.Level = slog.LevelWarn
			case "error":
				cfg.Level = slog.LevelError
			case "info":
				cfg.Level = slog.LevelInfo
			}
			if v := flagOrConfig(c, "log-format", fc.LogFormat); v != "" {
				cfg.Format = v
			}
			cfg.SetAsDefault = false
			log, _ := logging.New(cfg)
			return context.WithValue(ctx, loggerCtxKey{}, log), nil
		},
		Commands: []*cli.Command{
			cmdPack(),
			cmdUnpackMaster(),
			cmdUnpackTenant(),
			cmdInfo(),
			cmdKeyring(),
			cmdServeObjectstore(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("cryptoblob", "err", err)
		os.Exit(1)
	}
}
