// Package gcp writes classifications to BigQuery and publishes them to Pub/Sub
// through the Google REST APIs.
package gcp

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/pubsub/v1"
)

// Scopes are the OAuth scopes the sinks need.
var Scopes = []string{bigquery.BigqueryInsertdataScope, pubsub.PubsubScope}

// ClientOptions returns authenticated client options. With an empty
// credentialsFile, Application Default Credentials are used.
func ClientOptions(ctx context.Context, credentialsFile string) ([]option.ClientOption, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if credentialsFile != "" {
		data, readErr := os.ReadFile(credentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("unable to read credentials file: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, Scopes...)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, Scopes...)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load Google credentials: %w", err)
	}
	return []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource))}, nil
}
