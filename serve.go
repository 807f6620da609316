package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sinclairtarget/git-who-server/internal/config"
	"github.com/sinclairtarget/git-who-server/internal/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve contribution reports over HTTP",
		Long: `Serve contribution reports over HTTP.

GET /stats?repoUrl=<url> clones or updates the repository, then responds with
a JSON array of {"author", "lines", "merges"} objects, one per author, most
commits first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(
				cmd.Context(),
				os.Interrupt,
				syscall.SIGTERM,
			)
			defer stop()

			return serve(ctx, c)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyAddr, ":3000", "Address to listen on")
	flags.Duration(
		config.KeyShutdownGrace,
		10*time.Second,
		"How long to wait for in-flight requests on shutdown",
	)

	err := v.BindPFlags(flags)
	if err != nil {
		panic(err)
	}

	return cmd
}

func serve(ctx context.Context, c config.Config) error {
	logger().Debug(
		"called serve()",
		"addr",
		c.Addr,
		"workdir",
		c.Workdir,
		"layout",
		c.Layout,
		"backend",
		c.Backend,
		"verifyOrigin",
		c.VerifyOrigin,
	)

	service, err := c.Service()
	if err != nil {
		return err
	}

	return server.ListenAndServe(
		ctx,
		c.Addr,
		server.NewHandler(service),
		c.ShutdownGrace,
		nil,
	)
}
