package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/tenantedge/pkg/client"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage the custom domains of a workspace",
}

func init() {
	domainCmd.AddCommand(domainAddCmd, domainVerifyCmd, domainCheckCmd, domainRemoveCmd, domainListCmd)
}

var domainAddCmd = &cobra.Command{
	Use:   "add <workspace> <domain>",
	Short: "Claim a domain and print the DNS records to publish",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newClient().AddDomain(cmd.Context(), args[0], args[1])
		if err != nil {
			return explain(err)
		}
		if outFormat == "json" {
			return printJSON(cmd.OutOrStdout(), d)
		}
		printInstructions(cmd.OutOrStdout(), d)
		return nil
	},
}

var domainVerifyCmd = &cobra.Command{
	Use:   "verify <workspace> <domain>",
	Short: "Run the DNS check for a domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().VerifyDomain(cmd.Context(), args[0], args[1])
		if err != nil {
			return explain(err)
		}
		return printVerify(cmd.OutOrStdout(), res)
	},
}

var domainCheckCmd = &cobra.Command{
	Use:   "check <domain>",
	Short: "Re-run the DNS check for a domain by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().CheckDomain(cmd.Context(), args[0])
		if err != nil {
			return explain(err)
		}
		return printVerify(cmd.OutOrStdout(), res)
	},
}

var domainRemoveCmd = &cobra.Command{
	Use:   "remove <workspace> <domain>",
	Short: "Release a domain from the workspace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().RemoveDomain(cmd.Context(), args[0], args[1]); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[1])
		return nil
	},
}

var domainListCmd = &cobra.Command{
	Use:   "list <workspace>",
	Short: "List the domains of a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := newClient().ListDomains(cmd.Context(), args[0])
		if err != nil {
			return explain(err)
		}
		if outFormat == "json" {
			return printJSON(cmd.OutOrStdout(), ds)
		}
		printDomains(cmd.OutOrStdout(), ds)
		return nil
	},
}

func printInstructions(w io.Writer, d *client.Domain) {
	fmt.Fprintf(w, "%s is %s\n\n", d.Name, d.Status)
	fmt.Fprintln(w, "Publish one of these records, then run 'tenantctl domain verify':")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TYPE\tHOST\tVALUE")
	fmt.Fprintf(tw, "  CNAME\t%s\t%s\n", d.DNS.CNAMEHost, d.DNS.CNAMETarget)
	fmt.Fprintf(tw, "  TXT\t%s\t%s\n", d.DNS.TXTHost, d.DNS.TXTValue)
	tw.Flush()
}

func printVerify(w io.Writer, res *client.VerifyResult) error {
	if outFormat == "json" {
		return printJSON(w, res)
	}
	if res.Verified {
		fmt.Fprintf(w, "%s is VERIFIED\n", res.Domain.Name)
		return nil
	}
	fmt.Fprintf(w, "%s is %s: %s\n", res.Domain.Name, res.Domain.Status, res.Reason)
	return nil
}

func printDomains(w io.Writer, ds []client.Domain) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tSTATUS\tLAST CHECKED")
	for _, d := range ds {
		checked := "never"
		if d.LastCheckedAt != nil {
			checked = d.LastCheckedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Status, checked)
	}
	tw.Flush()
}
