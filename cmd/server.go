package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/poolside-scheduler/internal/booking"
	"github.com/example/poolside-scheduler/internal/config"
	"github.com/example/poolside-scheduler/internal/metrics"
	"github.com/example/poolside-scheduler/internal/oauth"
	"github.com/example/poolside-scheduler/internal/scheduler"
	"github.com/example/poolside-scheduler/internal/soho"
	"github.com/example/poolside-scheduler/internal/store"
	"github.com/example/poolside-scheduler/internal/web"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking API + scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := newLogger()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st := store.New(cfg.DataDir, log)
			sessions := oauth.NewSessionStore(cfg.ClientID, cfg.RedirectURI, cfg.IdentityBaseURL, log)
			tokens := oauth.NewTokenClient(cfg.IdentityBaseURL, cfg.ClientID, cfg.RedirectURI, st, log)
			sohoClient := soho.New(cfg.APIBaseURL, log)
			m := metrics.NewMetrics("poolside")

			seq := &booking.Sequencer{API: sohoClient, Log: log}
			orch := &booking.Orchestrator{
				Tokens:  tokens,
				Seq:     seq,
				Store:   st,
				Metrics: m,
				Defaults: booking.Defaults{
					Venues:        cfg.DefaultVenues,
					PartySize:     cfg.DefaultPartySize,
					Phone:         soho.Phone{CountryCode: cfg.DefaultPhoneCountry, Number: cfg.DefaultPhoneNumber},
					BookingHour:   cfg.BookingHour,
					BookingMinute: cfg.BookingMinute,
				},
				Log: log,
			}

			if !noScheduler {
				loc, err := time.LoadLocation(cfg.Timezone)
				if err != nil {
					return err
				}
				s := &scheduler.Scheduler{
					Tokens:          tokens,
					Orch:            orch,
					Metrics:         m,
					RefreshInterval: cfg.RefreshInterval,
					BookAtLocal:     cfg.BookAtLocal,
					Location:        loc,
					Log:             log,
				}
				go func() { _ = s.Run(ctx) }()
			}

			ws := &web.Server{
				Sessions: sessions,
				Tokens:   tokens,
				Soho:     sohoClient,
				Orch:     orch,
				Store:    st,
				Cfg:      cfg,
				Log:      log,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the internal cron loop")
	return cmd
}
