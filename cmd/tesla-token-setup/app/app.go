package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/gosuri/uitable"
	"golang.org/x/oauth2"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/tesla-exporter/cmd/tesla-token-setup/app/options"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/fleet"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/token"
	"github.com/autopeer-io/tesla-exporter/pkg/app"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

const (
	commandName = "tesla-token-setup"
	commandDesc = `Run the OAuth2 authorization code flow once to obtain the credential the
exporter refreshes from then on.

The command prints an authorization URL. Open it, sign in with the Tesla account and
grant access, then paste the URL the browser was redirected to. The credential is
written to --token.file-path, replacing any previous one. A running exporter picks it
up without a restart.`
)

func NewApp() *app.App {
	opts := options.NewSetupOptions()
	application := app.NewApp(
		commandName,
		"Authorize the exporter against a Tesla account",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvAliases(options.EnvAliases),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.SetupOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()
		return Setup(ctx, opts, os.Stdin, os.Stdout)
	}
}

// Setup runs the interactive flow reading the redirect URL from in.
func Setup(ctx context.Context, opts *options.SetupOptions, in io.Reader, out io.Writer) error {
	fo := opts.FleetOptions
	client := &http.Client{Timeout: fo.RequestTimeout}

	authorizer := token.NewAuthorizer(token.AuthorizerConfig{
		ClientID:     fo.ClientID,
		ClientSecret: fo.ClientSecret,
		AuthURL:      fo.AuthorizeURL(),
		TokenURL:     fo.TokenURL(),
		RedirectURI:  fo.RedirectURI,
		Scopes:       fo.ScopeList(),
		Audience:     fo.APIBase,
	}, client)

	state := uuid.NewString()

	fmt.Fprintln(out, "Step 1: Open the following URL in your browser:")
	fmt.Fprintf(out, "\n  %s\n\n", authorizer.AuthCodeURL(state))
	fmt.Fprintln(out, "Step 2: Sign in to your Tesla account and authorize the application.")
	fmt.Fprintf(out, "Step 3: Copy the full URL the browser is redirected to (it starts with %s).\n\n", fo.RedirectURI)
	fmt.Fprint(out, "Paste the redirect URL here: ")

	redirect, err := readLine(in)
	if err != nil {
		return err
	}

	code, stateOK, err := token.ParseRedirect(redirect, state)
	if err != nil {
		return err
	}
	if !stateOK {
		fmt.Fprintln(out, "\nWarning: state parameter mismatch, proceeding anyway.")
	}

	fmt.Fprintln(out, "\nExchanging authorization code for tokens...")
	cred, err := authorizer.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	store := token.NewFileStore(opts.TokenOptions.FilePath)
	if err := store.Save(ctx, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	fmt.Fprintf(out, "Tokens saved to %s (expire %s).\n\n", store.Path(), cred.ExpiresAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintln(out, "Verifying access by listing your vehicles...")
	creds := &fleet.TokenSourceCredentials{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: cred.Type()}),
	}
	api, err := fleet.NewClient(fo.APIBase, creds, fo.RequestTimeout, fleet.WithHTTPClient(client))
	if err != nil {
		return err
	}
	vehicles, err := api.ListVehicles(ctx)
	if err != nil {
		// The credential is stored; listing only confirms the scopes and the virtual key.
		fmt.Fprintf(out, "Failed to list vehicles: %v\n", err)
		return nil
	}
	if len(vehicles) == 0 {
		fmt.Fprintln(out, "No vehicles found. Check the application scopes and that the virtual key is installed on the vehicle.")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("INDEX", "NAME", "VIN", "STATE")
	for i, v := range vehicles {
		table.AddRow(i, v.Name(), v.VIN, v.State)
	}
	fmt.Fprintf(out, "\nFound %d vehicle(s):\n\n%s\n\n", len(vehicles), table)
	fmt.Fprintln(out, "Setup complete. Select a vehicle with --fleet.vehicle-index and start tesla-exporter.")
	return nil
}

func readLine(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no redirect url provided")
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return "", errors.New("no redirect url provided")
	}
	return line, nil
}
