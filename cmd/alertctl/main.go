// Command alertctl is an operator tool for the classifier service. It builds
// push envelopes, runs the pipeline locally and reads service metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwvgroup/pittgoogle-user/internal/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "alertctl",
		Short: "Operator tool for the alert classifier",
		Long: `alertctl wraps alerts into Pub/Sub push envelopes, classifies them locally
with the same pipeline the service runs, and prints service metrics.

Every flag can also be set as ALERTCTL_<FLAG> or in a config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile, cmd)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./alertctl.yaml)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(envelopeCmd())
	root.AddCommand(classifyCmd(v))
	root.AddCommand(metricsCmd(v))
	return root
}

func initConfig(v *viper.Viper, cfgFile string, cmd *cobra.Command) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("alertctl")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ALERTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := config.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}
