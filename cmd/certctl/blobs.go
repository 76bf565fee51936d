package main

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/typely/certify/blob"
	"github.com/typely/certify/certificate"
	"github.com/typely/certify/cmd/certify/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deletes certificate files that no certificate refers to",
	Long: `Deletes certificate files that no certificate refers to.
Files younger than the configured grace period are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := loadConfig()
		backs := loadStorage(c).Backends()
		blobs, err := config.NewBlobStore(c.Blob)
		if err != nil {
			return err
		}
		defer closeStore(blobs)
		report, err := certificate.NewSweeper(blobs, backs.Certificates, c.Sweeper.Grace.Duration()).Sweep(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Manages the certificate file store",
}

var (
	migrateTarget      config.BlobConf
	migratePrefix      string
	migrateSkipPresent bool
)

var blobsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copies all certificate files from the configured store to another store",
	Example: `  certctl blobs migrate --type badger --dir /var/lib/certify/blobs
  certctl blobs migrate --type http --url https://objects.example.com/certificates --skip-existing`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := loadConfig()
		src, err := config.NewBlobStore(c.Blob)
		if err != nil {
			return err
		}
		defer closeStore(src)
		if migrateTarget.APIKey == "" {
			migrateTarget.APIKey = c.Blob.APIKey
		}
		if migrateTarget.Timeout == 0 {
			migrateTarget.Timeout = c.Blob.Timeout
		}
		dst, err := config.NewBlobStore(migrateTarget)
		if err != nil {
			return err
		}
		defer closeStore(dst)

		var n int
		if migrateSkipPresent {
			n, err = blob.MigrateMissing(cmd.Context(), src, dst, migratePrefix)
		} else {
			n, err = blob.Migrate(cmd.Context(), src, dst, migratePrefix)
		}
		log.WithField("copied", n).Info("migrated certificate files")
		return err
	},
}

func closeStore(s blob.Store) {
	if closer, ok := s.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("could not close blob store")
		}
	}
}

func init() {
	f := blobsMigrateCmd.Flags()
	f.StringVar((*string)(&migrateTarget.Type), "type", "", "type of the target store (fs, badger, http)")
	f.StringVar(&migrateTarget.Dir, "dir", "", "directory of an fs or badger target store")
	f.StringVar(&migrateTarget.URL, "url", "", "base url of an http target store")
	f.StringVar(&migratePrefix, "prefix", "", "only copy files below this path")
	f.BoolVar(&migrateSkipPresent, "skip-existing", false, "do not copy files the target store already has")
	_ = blobsMigrateCmd.MarkFlagRequired("type")
	blobsCmd.AddCommand(blobsMigrateCmd)
}
