package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hyperrixel/logos/internal/archive"
	"github.com/hyperrixel/logos/internal/wire"
)

// NewExportCommand constructs the `export` command: download a log
// extract as a compressed archive (admin only). The file is re-read
// after download so a truncated transfer never passes silently.
func NewExportCommand(baseURL BaseURLFunc) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Download a log extract as a compressed archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			principal, err := requirePrincipal(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			fromSeq, _ := cmd.Flags().GetUint64("from-seq")
			toSeq, _ := cmd.Flags().GetUint64("to-seq")
			fromMs, err := parseMillisFlag(cmd, "from")
			if err != nil {
				return err
			}

			q := url.Values{}
			if fromSeq > 0 {
				q.Set("from_seq", strconv.FormatUint(fromSeq, 10))
			}
			if toSeq > 0 {
				q.Set("to_seq", strconv.FormatUint(toSeq, 10))
			}
			if fromMs > 0 {
				q.Set("from_ms", strconv.FormatInt(fromMs, 10))
			}
			u := baseURL() + "/v1/export"
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

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := io.Copy(f, resp.Body)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			sum, err := verifyArchive(out)
			if err != nil {
				return fmt.Errorf("downloaded archive failed verification: %w", err)
			}
			return printJSON(cmd, map[string]any{
				"file":     out,
				"bytes":    n,
				"entries":  sum.Entries,
				"firstSeq": sum.FirstSeq,
				"lastSeq":  sum.LastSeq,
			})
		},
	}
	exportCmd.Flags().String("out", "logos-archive.zst", "Output file")
	exportCmd.Flags().Uint64("from-seq", 0, "First entry id to include")
	exportCmd.Flags().Uint64("to-seq", 0, "Last entry id to include (0 = head)")
	exportCmd.Flags().String("from", "", "Include commits at or after: RFC3339 or ms")
	addPrincipalFlag(exportCmd)
	return exportCmd
}

// NewArchiveCommand constructs the `archive` command group: offline
// tooling for exported archives, no server required.
func NewArchiveCommand() *cobra.Command {
	archiveCmd := &cobra.Command{Use: "archive", Short: "Offline archive tooling"}
	archiveCmd.AddCommand(newArchiveInspectCommand())
	return archiveCmd
}

// newArchiveInspectCommand constructs the `archive inspect` subcommand.
func newArchiveInspectCommand() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Verify an archive and optionally list its entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("missing --file")
			}
			list, _ := cmd.Flags().GetBool("list")

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			if !list {
				sum, err := archive.Verify(f)
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			}

			ar, err := archive.NewReader(f)
			if err != nil {
				return err
			}
			defer ar.Close()
			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				rec, err := ar.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				e, err := wire.DecodeStored(rec.Payload)
				if err != nil {
					return err
				}
				if err := enc.Encode(wire.FromEntry(e)); err != nil {
					return err
				}
			}
		},
	}
	inspectCmd.Flags().String("file", "", "Archive file (.zst)")
	inspectCmd.Flags().Bool("list", false, "Print each entry as one JSON line")
	return inspectCmd
}

// verifyArchive re-reads a downloaded archive end to end.
func verifyArchive(path string) (archive.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return archive.Summary{}, err
	}
	defer func() { _ = f.Close() }()
	return archive.Verify(f)
}
