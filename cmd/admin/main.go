// Command admin is an operator CLI for the running gateway: block/unblock
// a client identity and force a robots.txt reload, all via the admin HTTP
// surface exposed by cmd/gateway. Subcommand/flag structuring follows
// docs-crawler's cobra-based CLI (a persistent flag for shared config, one
// Run func per verb) rather than hand-rolled flag parsing.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var baseURL string

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator CLI for the ai-scraping-defense gateway",
	Long: `admin talks to a running gateway instance's /admin/* endpoints to
block or unblock a client identity and to force an out-of-cadence
robots.txt reload.`,
}

var blockCmd = &cobra.Command{
	Use:   "block <client-identity>",
	Short: "Add a client identity to the blocklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetInt("ttl-seconds")
		return postIdentity("/admin/block", args[0], ttl)
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <client-identity>",
	Short: "Remove a client identity from the blocklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postIdentity("/admin/unblock", args[0], 0)
	},
}

var robotsReloadCmd = &cobra.Command{
	Use:   "robots-reload",
	Short: "Force the gateway to re-read robots.txt immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postEmpty("/admin/robots/reload")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "gateway base URL")
	blockCmd.Flags().Int("ttl-seconds", 86400, "block duration in seconds")
	rootCmd.AddCommand(blockCmd, unblockCmd, robotsReloadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type identityRequest struct {
	ClientIdentity string `json:"client_identity"`
	TTLSeconds     int    `json:"ttl_seconds,omitempty"`
}

func postIdentity(path, identity string, ttlSeconds int) error {
	body, err := json.Marshal(identityRequest{ClientIdentity: identity, TTLSeconds: ttlSeconds})
	if err != nil {
		return err
	}
	return post(path, body)
}

func postEmpty(path string) error {
	return post(path, nil)
}

func post(path string, body []byte) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("admin: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("admin: %s returned status %d: %s", path, resp.StatusCode, respBody)
	}
	fmt.Printf("ok: %s\n", path)
	return nil
}
