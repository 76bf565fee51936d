package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/typely/certify/certificate"
	"github.com/typely/certify/cmd/certify/config"
	"github.com/typely/certify/internal/cache"
)

var verifyCmd = &cobra.Command{
	Use:   "verify CODE",
	Short: "Looks up a certificate like the public verification endpoint does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := loadConfig()
		backs := loadStorage(c).Backends()
		res, err := certificate.NewVerifier(
			backs.Certificates, backs.Attempts, c.Verification.LegacyCodes,
		).Verify(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

// newRevoker creates a Revoker that also drops cached verification responses
// if the server shares a redis cache
func newRevoker() *certificate.Revoker {
	c := loadConfig()
	if err := config.InitCache(c); err != nil {
		log.WithError(err).Warn("could not connect to the response cache; cached verifications expire on their own")
	}
	revoker := certificate.NewRevoker(loadStorage(c).Backends().Certificates)
	revoker.OnChange = cache.InvalidateVerification
	return revoker
}

var revokeReason string

var revokeCmd = &cobra.Command{
	Use:   "revoke CODE",
	Short: "Revokes a certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		revoker := newRevoker()
		cert, err := revoker.Revoke(cmd.Context(), args[0], revokeReason)
		if err != nil {
			return err
		}
		return printJSON(cert)
	},
}

var unrevokeCmd = &cobra.Command{
	Use:   "unrevoke CODE",
	Short: "Lifts the revocation of a certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		revoker := newRevoker()
		cert, err := revoker.Unrevoke(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cert)
	},
}

func init() {
	revokeCmd.Flags().StringVarP(&revokeReason, "reason", "r", "", "why the certificate is revoked")
	_ = revokeCmd.MarkFlagRequired("reason")
}
