package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Vandebron/jwks-client/pkg/config"
	"github.com/Vandebron/jwks-client/pkg/jwks"
	"github.com/Vandebron/jwks-client/pkg/source"
)

// unknownKID can never be a valid kid of a tenant
const unknownKID = "unknown"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "get-jwks",
		Short: "Resolve a key by kid from a tenant's .well-known/jwks.json",
		Long: `Fetches the JSON Web Key Set of a tenant and looks up a key by its kid.

The tenant is read from AUTH0_BASE_URL (e.g. https://{TENANT}.eu.auth0.com) and
the kid from KID, or from the matching flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file")
	cmd.Flags().String("base-url", "", "tenant base url")
	cmd.Flags().String("jwks-path", config.DefaultJWKSPath, "path of the key set below the base url")
	cmd.Flags().String("kid", "", "key id to look up")
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "request timeout")
	cmd.Flags().Int("retries", 0, "retries for failed requests")
	cmd.Flags().Duration("min-refresh-interval", config.DefaultMinRefreshInterval, "minimum time between refreshes on unknown kid")
	cmd.Flags().Duration("time-to-live", config.DefaultTimeToLive, "age after which the key set is fetched again")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "log level")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	url, err := cfg.JWKSURL()
	if err != nil {
		return err
	}

	src, err := source.NewWebSource(url,
		source.WithTimeout(cfg.Timeout),
		source.WithRetry(source.RetryPolicy{MaxRetries: cfg.Retries}),
		source.WithLogger(logger.WithField("component", "jwks-web-source")),
	)
	if err != nil {
		return fmt.Errorf("failed to build web source: %w", err)
	}

	client := jwks.New(src,
		jwks.WithMinRefreshInterval(cfg.MinRefreshInterval),
		jwks.WithTimeToLive(cfg.TimeToLive),
		jwks.WithLogger(logger.WithField("component", "jwks-client")),
	)

	out := cmd.OutOrStdout()

	_, err = client.Get(ctx, unknownKID)
	if err == nil {
		return fmt.Errorf("kid %q unexpectedly found", unknownKID)
	}
	fmt.Fprintf(out, "Get with kid %q: %v\n", unknownKID, err)

	if cfg.KID == "" {
		return nil
	}

	key, err := client.Get(ctx, cfg.KID)
	if err != nil {
		return fmt.Errorf("get with kid %q: %w", cfg.KID, err)
	}
	fmt.Fprintf(out, "Get with kid %q: %+v\n", cfg.KID, key)

	return nil
}
