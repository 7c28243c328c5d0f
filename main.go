package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/middleware"
	"github.com/deemkeen/chartreuse/util"
	"github.com/deemkeen/chartreuse/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// cli carries the configuration loaded before any subcommand runs.
type cli struct {
	conf *util.AppConfig
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           util.Name,
		Short:         "A federation node exchanging posts, comments, likes and follows with its peers",
		Version:       util.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := util.ReadConf()
			if err != nil {
				return err
			}
			util.InitLogger(conf.Conf.LogLevel, conf.Conf.LogFormat)
			c.conf = conf
			return nil
		},
	}
	root.AddCommand(c.serveCmd(), c.nodeCmd())
	return root
}

func (c *cli) openDB() (*db.DB, error) {
	return db.Open(c.conf.Conf.DbPath)
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, the inbox and, if enabled, the ssh admin console",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	conf := c.conf
	log.Info().
		Str("version", util.GetNameAndVersion()).
		Str("publicHost", conf.Conf.PublicHost).
		Str("db", conf.Conf.DbPath).
		Dur("deliveryTimeout", conf.DeliveryTimeout()).
		Int("deliveryConcurrency", conf.DeliveryConcurrency()).
		Bool("withAdmin", conf.Conf.WithAdmin).
		Msg("Configuration loaded")

	database, err := c.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           web.NewServer(conf, database).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sshServer *ssh.Server
	if conf.Conf.WithAdmin {
		if sshServer, err = c.adminServer(database); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if sshServer != nil {
		g.Go(func() error {
			log.Info().Str("addr", sshServer.Addr).Msg("Starting SSH admin console")
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				return fmt.Errorf("ssh server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if sshServer != nil {
			if err := sshServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("SSH server shutdown failed")
			}
		}
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (c *cli) adminServer(database *db.DB) (*ssh.Server, error) {
	keys, err := middleware.ParseAdminKeys(c.conf.Conf.AdminKeys)
	if err != nil {
		return nil, err
	}
	if keys.Len() == 0 {
		return nil, errors.New("withAdmin is set but no adminKeys are configured")
	}
	return wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", c.conf.Conf.Host, c.conf.Conf.SshPort)),
		wish.WithHostKeyPath(util.ResolveFilePathWithSubdir(".ssh", "chartreusehostkey")),
		wish.WithPublicKeyAuth(keys.PublicKeyHandler),
		wish.WithMiddleware(
			middleware.MainTui(database, c.conf),
			middleware.AuthMiddleware(keys),
			logging.Middleware(), // last middleware executed first
		),
	)
}
