package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/hostroute"
	"github.com/jmerrifield20/tenantedge/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	token     string
	apex      string
	cfgFile   string
	outFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tenantctl",
	Short: "Manage workspaces and custom domains",
	Long: `tenantctl manages workspaces and their custom domains on a tenantedge server.

Settings are read from flags, then TENANTEDGE_* environment variables, then
~/.tenantctl/config.yaml (server_url, token, apex).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.tenantctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("tenantedge")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if token == "" {
			token = viper.GetString("token")
		}
		if apex == "" {
			apex = viper.GetString("apex")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.tenantctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "session token")
	rootCmd.PersistentFlags().StringVar(&apex, "apex", "", "platform host, used to reject names under it before sending")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "text", "output format: text or json")

	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithBearerToken(token), client.WithApex(apex))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain rewords local validation failures; API errors already read well.
func explain(err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid %s: %s", verr.Field, verr.Msg)
	}
	if errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("%w (pass --token or set TENANTEDGE_TOKEN)", err)
	}
	return err
}

// ── validate ─────────────────────────────────────────────────────────────────

var validateCmd = &cobra.Command{
	Use:   "validate <domain>",
	Short: "Check a domain name without contacting the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := domain.Validate(args[0], apex)
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok  %s\n", name)
		return nil
	},
}

// ── route ────────────────────────────────────────────────────────────────────

var (
	routeAppURL string
	routeHost   string
	routePath   string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Show how a request would be routed",
	Long: `route prints the routing decision for a host and path without a server:

  tenantctl route --app-url https://toolbox.app --host acme.toolbox.app --path /about`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := hostroute.ParseApex(routeAppURL)
		if err != nil {
			return err
		}
		d := hostroute.Decide(a, routeHost, routePath)
		if outFormat == "json" {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"kind":   d.Kind.String(),
				"tenant": d.Tenant,
				"path":   d.Path,
			})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "kind    %s\n", d.Kind)
		if d.Tenant != "" {
			fmt.Fprintf(out, "tenant  %s\n", d.Tenant)
		}
		fmt.Fprintf(out, "path    %s\n", d.Path)
		return nil
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeAppURL, "app-url", "", "platform URL, e.g. https://toolbox.app")
	routeCmd.Flags().StringVar(&routeHost, "host", "", "request Host header")
	routeCmd.Flags().StringVar(&routePath, "path", "/", "request path")
	_ = routeCmd.MarkFlagRequired("app-url")
	_ = routeCmd.MarkFlagRequired("host")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tenantctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tenantctl %s\n", version)
	},
}
