package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/poolside-scheduler/internal/config"
	"github.com/spf13/cobra"
)

// The task subcommands are the external-cron entrypoints: thin HTTP calls
// against a running server, for platforms whose cron runs a one-shot process
// instead of keeping the internal scheduler alive.
func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Run a one-shot scheduled task against a running server",
	}
	cmd.AddCommand(newTaskRefreshCmd())
	cmd.AddCommand(newTaskAutoBookCmd())
	return cmd
}

func newTaskRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-token",
		Short: "Refresh the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return postTask(cfg.BaseURL+"/refresh-token", "", 30*time.Second)
		},
	}
}

func newTaskAutoBookCmd() *cobra.Command {
	var venues string
	var partySize int

	c := &cobra.Command{
		Use:   "auto-book",
		Short: "Run the venue fallback booking sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			body := fmt.Sprintf(`{"party_size":%d`, partySize)
			if venues != "" {
				parts := strings.Split(venues, ",")
				for i, p := range parts {
					parts[i] = `"` + strings.TrimSpace(p) + `"`
				}
				body += `,"venues":[` + strings.Join(parts, ",") + `]`
			}
			body += "}"
			return postTask(cfg.BaseURL+"/auto-book", body, 60*time.Second)
		},
	}
	c.Flags().StringVar(&venues, "venues", "", "comma-separated venue ids (defaults to the server's list)")
	c.Flags().IntVar(&partySize, "party-size", 2, "party size")
	return c
}

func postTask(url, body string, timeout time.Duration) error {
	hc := &http.Client{Timeout: timeout}

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(http.MethodPost, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)

	fmt.Fprintln(os.Stdout, strings.TrimSpace(string(b)))
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, res.StatusCode)
	}
	return nil
}
