package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmitrijs2005/tabkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
	"github.com/dmitrijs2005/tabkeeper/internal/server"
	"github.com/dmitrijs2005/tabkeeper/internal/server/config"
)

var (
	cfgFile string
	userID  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tabkeeper-server",
		Short:         "TabKeeper reference sync server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printToken(cmd)
		},
	}
	tokenCmd.Flags().StringVar(&userID, "user", "", "User id to issue the token for")
	_ = tokenCmd.MarkFlagRequired("user")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, tokenCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString(config.KeyHTTPAddress), "HTTP listen address")
	cmd.PersistentFlags().String("data-dir", defaults.GetString(config.KeyDataDir), "Directory holding per-user replicas")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration(config.KeyTokenTTL), "Access token lifetime")
	cmd.PersistentFlags().String("log-level", defaults.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, config.KeyHTTPAddress, "http-address")
	bindFlag(cmd, config.KeyDataDir, "data-dir")
	bindFlag(cmd, config.KeyTokenTTL, "token-ttl")
	bindFlag(cmd, config.KeyLogLevel, "log-level")
	bindFlag(cmd, config.KeySigningSecret, "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(cmd *cobra.Command) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stdout, appConfig.LogLevel)

	app, err := server.NewApp(appConfig, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

func printToken(cmd *cobra.Command) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	token, err := server.IssueToken(appConfig, userID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
