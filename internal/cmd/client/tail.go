package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTailCommand constructs the `tail` command: a long-running SSE
// consumer that prints entries as they commit, backfill first.
func NewTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the log over SSE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			principal, err := requirePrincipal(cmd)
			if err != nil {
				return err
			}
			tags, _ := cmd.Flags().GetString("tags")
			authors, _ := cmd.Flags().GetString("authors")
			cur, _ := cmd.Flags().GetString("cursor")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			fromMs, err := parseMillisFlag(cmd, "from")
			if err != nil {
				return err
			}

			q := url.Values{}
			if tags != "" {
				q.Set("tags", tags)
			}
			if authors != "" {
				q.Set("authors", authors)
			}
			if fromMs > 0 {
				q.Set("from_ms", strconv.FormatInt(fromMs, 10))
			}
			if cur != "" {
				q.Set("cursor", cur)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			u := baseURL() + "/v1/subscribe"
			if len(q) > 0 {
				u += "?" + q.Encode()
			}

			resp, err := doRequest(cmd.Context(), http.MethodGet, u, principal, "", nil)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				return httpError(resp)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			seen := 0
			sc := bufio.NewScanner(resp.Body)
			sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for sc.Scan() {
				line := sc.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var ev any
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
					return fmt.Errorf("bad event: %w", err)
				}
				if err := enc.Encode(ev); err != nil {
					return err
				}
				seen++
				if limit > 0 && seen >= limit {
					return nil
				}
			}
			// A canceled context surfaces as a read error; treat it as a
			// clean stop.
			if err := sc.Err(); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
	tailCmd.Flags().String("tags", "", "Comma separated tags; entries carrying any listed tag match")
	tailCmd.Flags().String("authors", "", "Comma separated author filters")
	tailCmd.Flags().String("from", "", "Backfill from timestamp: RFC3339 or ms")
	tailCmd.Flags().String("cursor", "", "Resume cursor from a previous session")
	tailCmd.Flags().String("filter", "", "CEL filter (server-side)")
	tailCmd.Flags().Int("limit", 0, "Stop after N entries (0 = infinite)")
	addPrincipalFlag(tailCmd)
	return tailCmd
}
