package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var invoiceOutput string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the retailer record of the signed in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := client.RetailerProfile(cmd.Context())
		if err != nil {
			return describeError(err)
		}
		return printRow(cmd.OutOrStdout(), row)
	},
}

var invoicePDFCmd = &cobra.Command{
	Use:   "invoice-pdf <id>",
	Short: "Download an invoice as PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoicePDF,
}

func init() {
	invoicePDFCmd.Flags().StringVarP(&invoiceOutput, "output", "o", "", "file to write (default invoice-<id>.pdf)")
}

func runInvoicePDF(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	data, err := client.InvoicePDF(cmd.Context(), id)
	if err != nil {
		return describeError(err)
	}

	path := invoiceOutput
	if path == "" {
		path = fmt.Sprintf("invoice-%d.pdf", id)
	}
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes)\n", path, len(data))
	return nil
}
