// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// This is a manual test harness, not an example of production use: it walks the
// auth code redeem, cache hit and refresh paths against a real authority using
// the settings in config.yaml.
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AzureAD/msal-mobile-go/apps/public"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetLevel(log.DebugLevel)

	config, err := CreateConfig("config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	client, err := public.New(config.ClientID,
		public.WithAuthority(config.Authority),
		public.WithValidateAuthority(config.ValidateAuthority),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	authURL, err := client.CreateAuthCodeURL(ctx, config.ClientID, config.RedirectURI, config.Scopes)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Open this URL in a browser and sign in:")
	fmt.Println(authURL)

	code := waitForCode(config.RedirectURI)

	result, err := client.AcquireTokenByAuthCode(ctx, code, config.RedirectURI, config.Scopes)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("acquired token for %s, expires %s", result.Account.PreferredUsername, result.ExpiresOn)

	// The second acquisition must come from the cache.
	silent, err := client.AcquireTokenSilent(ctx, config.Scopes,
		public.WithSilentAccount(result.Account),
		public.WithUserPrincipalName(config.Upn),
	)
	if err != nil {
		log.Fatal(err)
	}
	if silent.AccessToken != result.AccessToken {
		log.Fatal("silent acquisition did not come from the cache")
	}
	log.Info("silent acquisition served from cache")

	for _, account := range client.Accounts() {
		log.Infof("cached account: %s (%s)", account.PreferredUsername, account.HomeAccountID)
	}
}

// waitForCode runs a throwaway local server on the redirect URI's port and blocks
// until the authority redirects back with an authorization code.
func waitForCode(redirectURI string) string {
	codeCh := make(chan string)

	srv := &http.Server{Addr: ":8080"}
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "no code in redirect", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this tab.")
		codeCh <- code
	})
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	code := <-codeCh
	srv.Close()
	return code
}
