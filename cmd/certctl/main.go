package main

import (
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/typely/certify/cmd/certify/config"
	"github.com/typely/certify/storage"
)

var rootCmd = &cobra.Command{
	Use:   "certctl",
	Short: "certctl can help you manage your certify instance",
	Long: `certctl can help you manage your certify instance.
It reads the same config file as the server and works directly on its
database and certificate file store.`,
	SilenceUsage: true,
}

var configFile string

func loadConfig() *config.Config {
	config.Load(configFile)
	log.Debug("Loaded Config")
	return config.Get()
}

func loadStorage(c *config.Config) *storage.Storage {
	s, err := config.LoadStorage(c)
	if err != nil {
		log.WithError(err).Fatal("could not load storage")
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "the config file to use")
	rootCmd.AddCommand(verifyCmd, revokeCmd, unrevokeCmd, usersCmd, sweepCmd, blobsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
