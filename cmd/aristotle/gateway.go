package main

import (
	"context"
	"log/slog"
	"io"
	"os/signal"
	"syscall"

	"aristotle/internal/app"
	"aristotle/internal/channels"
	"aristotle/internal/config"
	"aristotle/internal/gateway"

	"github.com/spf13/cobra"
)

var gatewayAddr string

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, builder, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if gatewayAddr != "" {
			cfg.Gateway.Addr = gatewayAddr
		}

		defaults := app.FromConfig(cfg)
		chs := buildChannels(cfg, builder, defaults)

		srv := gateway.NewServer(builder, defaults, cfg.Gateway.Token, chs...)
		slog.Info("starting gateway", "addr", cfg.Gateway.Addr, "agents", len(builder.Agents()), "channels", len(chs))
		err = srv.ListenAndServe(ctx, cfg.Gateway.Addr)
		for _, ch := range chs {
			if c, ok := ch.(io.Closer); ok {
				c.Close()
			}
		}
		return err
	},
}

func init() {
	gatewayCmd.Flags().StringVarP(&gatewayAddr, "addr", "a", "", "override gateway listen address")
}

// buildChannels wires enabled channels to an orchestrator that uses the
// server's own credentials. Channels that cannot be built are skipped, and so
// is a channel whose access list does not parse.
func buildChannels(cfg *config.Config, builder *app.Builder, creds app.Credentials) []channels.Channel {
	var chs []channels.Channel
	for name, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		switch ch.Type {
		case "telegram":
			orch, err := builder.Build(creds)
			if err != nil {
				slog.Warn("channel disabled", "name", name, "error", err)
				continue
			}
			var opts []channels.TelegramOption
			if v, ok := ch.Settings["allowed_users"]; ok {
				ids, err := channels.ParseAllowedUsers(v)
				if err != nil {
					slog.Error("channel disabled", "name", name, "error", err)
					continue
				}
				if len(ids) == 0 {
					slog.Warn("allowed_users is empty, channel will ignore every message", "name", name)
				}
				opts = append(opts, channels.WithAllowedUsers(ids...))
			}
			if secret := ch.Settings["secret_token"]; secret != "" {
				opts = append(opts, channels.WithSecretToken(secret))
			}
			chs = append(chs, channels.NewTelegram(ch.Settings["bot_token"], orch, opts...))
			slog.Info("channel registered", "name", name, "type", ch.Type)
		default:
			slog.Warn("unknown channel type", "name", name, "type", ch.Type)
		}
	}
	return chs
}
