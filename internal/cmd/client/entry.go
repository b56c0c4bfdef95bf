// Package client contains Cobra CLI commands for Logos.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperrixel/logos/internal/wire"
)

// NewEntryCommand constructs the `entry` command group and subcommands.
func NewEntryCommand(baseURL BaseURLFunc) *cobra.Command {
	entryCmd := &cobra.Command{Use: "entry", Short: "Entry operations"}

	entryCmd.AddCommand(
		newEntryPostCommand(baseURL),
		newEntryGetCommand(baseURL),
		newEntryRangeCommand(baseURL),
	)

	return entryCmd
}

// newEntryPostCommand constructs the `entry post` subcommand.
func newEntryPostCommand(baseURL BaseURLFunc) *cobra.Command {
	postCmd := &cobra.Command{
		Use:   "post",
		Short: "Submit one entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			principal, err := requirePrincipal(cmd)
			if err != nil {
				return err
			}

			var body []byte
			raw, _ := cmd.Flags().GetString("json")
			file, _ := cmd.Flags().GetString("file")
			switch {
			case raw != "":
				body = []byte(raw)
			case file == "-":
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = b
			case file != "":
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				body = b
			default:
				env, err := envelopeFromFlags(cmd, principal)
				if err != nil {
					return err
				}
				body, err = json.Marshal(env)
				if err != nil {
					return err
				}
			}

			resp, err := doRequest(cmd.Context(), http.MethodPost, baseURL()+"/v1/entries", principal, "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				return httpError(resp)
			}
			var receipt any
			if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}
	postCmd.Flags().StringSlice("tag", nil, "Entry tag (repeatable or comma separated)")
	postCmd.Flags().StringArray("attr", nil, "Attribute key=value or key:type=value (types: string,int,float,bool,time)")
	postCmd.Flags().StringSlice("link", nil, "Linked entry id (repeatable)")
	postCmd.Flags().StringSlice("attach", nil, "Registered blob id (repeatable)")
	postCmd.Flags().String("revision-of", "", "Entry id this entry revises")
	postCmd.Flags().String("created-at", "", "Producer timestamp: RFC3339 or ms (default now)")
	postCmd.Flags().String("json", "", "Raw envelope JSON (overrides structured flags)")
	postCmd.Flags().String("file", "", "Read envelope JSON from a file ('-' = stdin)")
	addPrincipalFlag(postCmd)
	return postCmd
}

// newEntryGetCommand constructs the `entry get` subcommand.
func newEntryGetCommand(baseURL BaseURLFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch one entry by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			id, _ := cmd.Flags().GetUint64("id")
			if id == 0 {
				return fmt.Errorf("missing --id")
			}
			path := "/v1/entries/get"
			if current, _ := cmd.Flags().GetBool("current"); current {
				path = "/v1/entries/current"
			}
			q := url.Values{}
			q.Set("id", strconv.FormatUint(id, 10))
			var env any
			if err := apiGet(cmd, baseURL, path, q, &env); err != nil {
				return err
			}
			return printJSON(cmd, env)
		},
	}
	getCmd.Flags().Uint64("id", 0, "Entry id")
	getCmd.Flags().Bool("current", false, "Resolve the revision head instead of the stored entry")
	addPrincipalFlag(getCmd)
	return getCmd
}

// newEntryRangeCommand constructs the `entry range` subcommand.
func newEntryRangeCommand(baseURL BaseURLFunc) *cobra.Command {
	rangeCmd := &cobra.Command{
		Use:   "range",
		Short: "Read entries in commit order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			fromSeq, _ := cmd.Flags().GetUint64("from-seq")
			toSeq, _ := cmd.Flags().GetUint64("to-seq")
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			cur, _ := cmd.Flags().GetString("cursor")

			q := url.Values{}
			if fromSeq > 0 {
				q.Set("from_seq", strconv.FormatUint(fromSeq, 10))
			}
			if toSeq > 0 {
				q.Set("to_seq", strconv.FormatUint(toSeq, 10))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if reverse {
				q.Set("reverse", "true")
			}
			if cur != "" {
				q.Set("cursor", cur)
			}
			var page any
			if err := apiGet(cmd, baseURL, "/v1/entries/range", q, &page); err != nil {
				return err
			}
			return printJSON(cmd, page)
		},
	}
	rangeCmd.Flags().Uint64("from-seq", 0, "First entry id (inclusive)")
	rangeCmd.Flags().Uint64("to-seq", 0, "Last entry id (inclusive, 0 = head)")
	rangeCmd.Flags().Int("limit", 100, "Max entries per page")
	rangeCmd.Flags().Bool("reverse", false, "Read newest-to-oldest")
	rangeCmd.Flags().String("cursor", "", "Resume cursor from a previous page")
	addPrincipalFlag(rangeCmd)
	return rangeCmd
}

// envelopeFromFlags assembles a submission envelope from the structured
// flags of `entry post`.
func envelopeFromFlags(cmd *cobra.Command, principal string) (wire.Envelope, error) {
	env := wire.Envelope{V: wire.Version, Author: principal}
	env.Tags, _ = cmd.Flags().GetStringSlice("tag")

	attrs, _ := cmd.Flags().GetStringArray("attr")
	for _, a := range attrs {
		attr, err := parseAttr(a)
		if err != nil {
			return env, err
		}
		env.Attributes = append(env.Attributes, attr)
	}
	links, _ := cmd.Flags().GetStringSlice("link")
	for _, l := range links {
		id, err := strconv.ParseUint(l, 10, 64)
		if err != nil || id == 0 {
			return env, fmt.Errorf("invalid --link %q; expected an entry id", l)
		}
		env.Links = append(env.Links, id)
	}
	blobs, _ := cmd.Flags().GetStringSlice("attach")
	for _, b := range blobs {
		env.Attachments = append(env.Attachments, wire.Attachment{BlobID: b})
	}
	if rev, _ := cmd.Flags().GetString("revision-of"); rev != "" {
		id, err := strconv.ParseUint(rev, 10, 64)
		if err != nil || id == 0 {
			return env, fmt.Errorf("invalid --revision-of %q; expected an entry id", rev)
		}
		env.RevisionOf = id
	}
	createdAt, err := parseMillisFlag(cmd, "created-at")
	if err != nil {
		return env, err
	}
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}
	env.CreatedAt = createdAt
	return env, nil
}

// parseAttr parses key=value or key:type=value into an envelope
// attribute. Values are converted locally so the server sees canonical
// forms; unknown types ride through as strings and the server's
// registry has the last word.
func parseAttr(s string) (wire.Attribute, error) {
	eq := strings.Index(s, "=")
	if eq <= 0 {
		return wire.Attribute{}, fmt.Errorf("invalid --attr %q; expected key=value", s)
	}
	key, val := s[:eq], s[eq+1:]
	typ := "string"
	if c := strings.Index(key, ":"); c > 0 {
		key, typ = key[:c], key[c+1:]
	}
	attr := wire.Attribute{Key: key, Type: typ}
	switch typ {
	case "int":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return attr, fmt.Errorf("invalid --attr %q: %w", s, err)
		}
		attr.Value = n
	case "time":
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			attr.Value = n
			break
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return attr, fmt.Errorf("invalid --attr %q; expected ms or RFC3339", s)
		}
		attr.Value = t.UnixMilli()
	case "float":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return attr, fmt.Errorf("invalid --attr %q: %w", s, err)
		}
		attr.Value = f
	case "bool":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return attr, fmt.Errorf("invalid --attr %q: %w", s, err)
		}
		attr.Value = b
	default:
		attr.Value = val
	}
	return attr, nil
}
