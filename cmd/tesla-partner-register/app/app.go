package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/tesla-exporter/cmd/tesla-partner-register/app/options"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/fleet"
	"github.com/autopeer-io/tesla-exporter/pkg/app"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

const (
	commandName = "tesla-partner-register"
	commandDesc = `Register the application's partner domain in the Fleet API region given by
--fleet.api-base. Tesla requires this once per region before vehicle data can be read.

The domain is the host of --fleet.redirect-uri. It must serve the application's public
key under ` + fleet.PublicKeyPath + `.`
)

func NewApp() *app.App {
	opts := options.NewRegisterOptions()
	application := app.NewApp(
		commandName,
		"Register the partner domain in a Fleet API region",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithNoConfig(),
		app.WithEnvAliases(options.EnvAliases),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.RegisterOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()
		return Register(ctx, opts, os.Stdout)
	}
}

// Register obtains a partner token and registers the partner domain.
func Register(ctx context.Context, opts *options.RegisterOptions, out io.Writer) error {
	fo := opts.FleetOptions
	domain, err := fo.PartnerDomain()
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: fo.RequestTimeout}

	fmt.Fprintf(out, "Region: %s\n", fo.APIBase)
	fmt.Fprintln(out, "Step 1: Obtaining partner token...")

	cc := &clientcredentials.Config{
		ClientID:       fo.ClientID,
		ClientSecret:   fo.ClientSecret,
		TokenURL:       fo.TokenURL(),
		Scopes:         fo.ScopeList(),
		EndpointParams: map[string][]string{"audience": {fo.APIBase}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}
	source := cc.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, client))
	if _, err := source.Token(); err != nil {
		return fmt.Errorf("failed to obtain partner token: %w", err)
	}

	fmt.Fprintf(out, "Step 2: Registering partner domain %s...\n", domain)
	api, err := fleet.NewClient(fo.APIBase, &fleet.TokenSourceCredentials{Source: source}, fo.RequestTimeout,
		fleet.WithHTTPClient(client))
	if err != nil {
		return err
	}

	resp, err := api.RegisterPartner(ctx, domain)
	if err != nil {
		fmt.Fprintln(out, "Registration failed. The domain must host the application's public key at:")
		fmt.Fprintf(out, "  https://%s%s\n", domain, fleet.PublicKeyPath)
		return err
	}

	fmt.Fprintf(out, "Response: %s\n", resp)
	fmt.Fprintln(out, "Partner account registered. Run tesla-token-setup next.")
	return nil
}
