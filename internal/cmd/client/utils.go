package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// principalHeader names the verified caller; the server trusts it the
// same way it trusts its fronting authenticator.
const principalHeader = "X-Logos-Principal"

// principalFrom resolves the calling principal: the --principal flag
// first, then the LOGOS_PRINCIPAL environment variable.
func principalFrom(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("principal"); p != "" {
		return p
	}
	return os.Getenv("LOGOS_PRINCIPAL")
}

// requirePrincipal is principalFrom for commands that cannot run
// anonymously.
func requirePrincipal(cmd *cobra.Command) (string, error) {
	p := principalFrom(cmd)
	if p == "" {
		return "", fmt.Errorf("missing --principal (or LOGOS_PRINCIPAL)")
	}
	return p, nil
}

// addPrincipalFlag registers the shared --principal flag.
func addPrincipalFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("principal", "p", "", "Calling principal id (default $LOGOS_PRINCIPAL)")
}

// doRequest performs one API call with the principal header attached.
func doRequest(ctx context.Context, method, rawURL, principal, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if principal != "" {
		req.Header.Set(principalHeader, principal)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return http.DefaultClient.Do(req)
}

// httpError drains the body and reports a non-2xx response as an error,
// keeping the taxonomy code when the server sent one.
func httpError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"error"`
	}
	err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	_, _ = io.Copy(io.Discard, resp.Body)
	if err == nil && body.Code != "" {
		return fmt.Errorf("http error: %s (%s)", resp.Status, body.Code)
	}
	return fmt.Errorf("http error: %s", resp.Status)
}

// apiGet fetches one JSON document and decodes it into out.
func apiGet(cmd *cobra.Command, baseURL BaseURLFunc, path string, query url.Values, out any) error {
	u := baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := doRequest(cmd.Context(), http.MethodGet, u, principalFrom(cmd), "", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return httpError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiPost sends one JSON document and decodes the response into out.
func apiPost(cmd *cobra.Command, baseURL BaseURLFunc, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := doRequest(cmd.Context(), http.MethodPost, baseURL()+path, principalFrom(cmd), "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return httpError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiDelete issues a DELETE and discards any body.
func apiDelete(cmd *cobra.Command, baseURL BaseURLFunc, path string, query url.Values) error {
	u := baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := doRequest(cmd.Context(), http.MethodDelete, u, principalFrom(cmd), "", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return httpError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// printJSON pretty-prints one value to the command output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseMillisFlag reads a time flag accepting a unix epoch in
// milliseconds or an RFC3339 timestamp. Empty means zero.
func parseMillisFlag(cmd *cobra.Command, name string) (int64, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid --%s; expected ms or RFC3339", name)
}
