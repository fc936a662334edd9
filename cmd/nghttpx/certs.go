package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect and create TLS certificates",
	Long: `Utilities for the certificates served on the frontend.

Subcommands:
  info     - Show a certificate and the host names it is selected for by SNI
  validate - Check that a key and certificate load the way run loads them
  generate - Create a self-signed certificate for testing

Examples:
  nghttpx certs info server.crt
  nghttpx certs validate --cert server.crt --key server.key
  nghttpx certs generate --host "localhost,*.example.test"`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
