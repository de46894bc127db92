package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/wakti/whoopsync/internal/xhttp"
)

func syncCmd() *cobra.Command {
	var (
		serverURL string
		mode      string
		start     string
		end       string
		key       string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger a sync run on a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := go_json.Marshal(map[string]string{
				"mode":  mode,
				"start": start,
				"end":   end,
			})
			if err != nil {
				return fmt.Errorf("encoding request: %w", err)
			}

			req, err := http.NewRequestWithContext(cmd.Context(),
				http.MethodPost, serverURL+"/sync", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("creating request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			if key != "" {
				req.Header.Set("Authorization", "Bearer "+key)
			}

			client := xhttp.NewHTTPClient(xhttp.WithTimeout(15 * time.Minute))
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("calling server: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
			}

			fmt.Println(string(respBody))
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "sync server base URL")
	cmd.Flags().StringVar(&mode, "mode", "", "sync mode: user or bulk (default: inferred from key)")
	cmd.Flags().StringVar(&start, "start", "", "window start, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC3339")
	cmd.Flags().StringVar(&key, "key", "", "API key (user) or operator key (bulk)")

	return cmd
}
