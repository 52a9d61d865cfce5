package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRelayCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Realtime room relay: websocket rooms with history, presence and moderation",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")

	cmd.AddCommand(
		NewServeCommand(&configPath),
		NewTokenCommand(&configPath),
	)
	return cmd
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := NewRelayCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
