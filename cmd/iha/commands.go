package main

import (
	"fmt"

	"github.com/aussiebroadwan/iha/internal/iha/app"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "iha",
		Short:             "OAuth2 and OpenID Connect authorization server",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to a TOML config file (IHA_* variables override it)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newKeygenCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (app.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return app.Config{}, err
	}
	return app.LoadConfig(path)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Seed the database and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := app.OpenDatabase(cfg.DatabaseFile)
			if err != nil {
				return err
			}
			cmd.Printf("migrations applied to %s\n", cfg.DatabaseFile)
			return db.Close()
		},
	}
}

func newKeygenCmd() *cobra.Command {
	var (
		alg     string
		kid     string
		rsaBits int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a private JWKS document for a signing config",
		Long: `keygen prints a single-key private JWKS document. Point jwt.jwks_file
(or a client's jwt.jwks_file) at the saved output and set key_id to the kid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kid == "" {
				generated, err := jwtx.NewKeyID()
				if err != nil {
					return err
				}
				kid = generated
			}

			raw, err := jwtx.GenerateJWKS(alg, kid, rsaBits)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}

	cmd.Flags().StringVar(&alg, "alg", jwtx.DefaultAlgorithm, "signing algorithm (RS256, RS384, RS512, PS256, ES256, EdDSA, HS256)")
	cmd.Flags().StringVar(&kid, "kid", "", "key id (random when empty)")
	cmd.Flags().IntVar(&rsaBits, "rsa-bits", 2048, "RSA key size")
	return cmd
}
