package client

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewBlobCommand constructs the `blob` command group.
func NewBlobCommand(baseURL BaseURLFunc) *cobra.Command {
	blobCmd := &cobra.Command{Use: "blob", Short: "Attachment blob operations"}
	blobCmd.AddCommand(newBlobRegisterCommand(baseURL))
	return blobCmd
}

// newBlobRegisterCommand constructs the `blob register` subcommand.
// Registration records metadata only; the bytes live in external object
// storage and entries reference the returned id.
func newBlobRegisterCommand(baseURL BaseURLFunc) *cobra.Command {
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register attachment metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			ct, _ := cmd.Flags().GetString("content-type")
			size, _ := cmd.Flags().GetInt64("size")
			if file, _ := cmd.Flags().GetString("file"); file != "" {
				fi, err := os.Stat(file)
				if err != nil {
					return err
				}
				size = fi.Size()
				if ct == "" {
					ct = mime.TypeByExtension(filepath.Ext(file))
				}
			}
			if ct == "" {
				return fmt.Errorf("missing --content-type")
			}

			body := map[string]any{"contentType": ct, "size": size}
			var info any
			if err := apiPost(cmd, baseURL, "/v1/blobs", body, &info); err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
	registerCmd.Flags().String("content-type", "", "MIME type of the blob")
	registerCmd.Flags().Int64("size", 0, "Size in bytes")
	registerCmd.Flags().String("file", "", "Take size (and type, by extension) from a local file")
	addPrincipalFlag(registerCmd)
	return registerCmd
}
