package client

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/hyperrixel/logos/internal/access"
)

// NewAdminCommand constructs the `admin` command group: registry
// management against /v1/admin. Every subcommand needs an admin
// principal; the server enforces that.
func NewAdminCommand(baseURL BaseURLFunc) *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Access registry administration"}

	adminCmd.AddCommand(
		newAdminPrincipalCommand(baseURL),
		newAdminRuleCommand(baseURL),
	)

	return adminCmd
}

// newAdminPrincipalCommand constructs the `admin principal` subcommands.
func newAdminPrincipalCommand(baseURL BaseURLFunc) *cobra.Command {
	principalCmd := &cobra.Command{Use: "principal", Short: "Principal management"}

	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Create or update a principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				return fmt.Errorf("missing --id")
			}
			name, _ := cmd.Flags().GetString("display-name")
			kind, _ := cmd.Flags().GetString("kind")
			role, _ := cmd.Flags().GetString("role")
			clearance, _ := cmd.Flags().GetStringSlice("clearance")

			p := access.Principal{
				ID:          id,
				DisplayName: name,
				Kind:        access.Kind(kind),
				Role:        role,
				Clearance:   clearance,
			}
			var stored any
			if err := apiPost(cmd, baseURL, "/v1/admin/principals", p, &stored); err != nil {
				return err
			}
			return printJSON(cmd, stored)
		},
	}
	putCmd.Flags().String("id", "", "Principal id")
	putCmd.Flags().String("display-name", "", "Human readable name")
	putCmd.Flags().String("kind", "human", "Principal kind: human|device")
	putCmd.Flags().String("role", "", "Role name (admin bypasses rules)")
	putCmd.Flags().StringSlice("clearance", nil, "Clearance labels")
	addPrincipalFlag(putCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List principals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			var out any
			if err := apiGet(cmd, baseURL, "/v1/admin/principals", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addPrincipalFlag(listCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				return fmt.Errorf("missing --id")
			}
			q := url.Values{}
			q.Set("id", id)
			if err := apiDelete(cmd, baseURL, "/v1/admin/principals", q); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	deleteCmd.Flags().String("id", "", "Principal id")
	addPrincipalFlag(deleteCmd)

	principalCmd.AddCommand(putCmd, listCmd, deleteCmd)
	return principalCmd
}

// newAdminRuleCommand constructs the `admin rule` subcommands.
func newAdminRuleCommand(baseURL BaseURLFunc) *cobra.Command {
	ruleCmd := &cobra.Command{Use: "rule", Short: "Access rule management"}

	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Create or update an access rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			subject, _ := cmd.Flags().GetString("principal-id")
			role, _ := cmd.Flags().GetString("role")
			pattern, _ := cmd.Flags().GetString("pattern")
			if pattern == "" {
				return fmt.Errorf("missing --pattern")
			}
			names, _ := cmd.Flags().GetStringSlice("action")
			actions := make([]access.Action, 0, len(names))
			for _, n := range names {
				a, err := access.ParseAction(n)
				if err != nil {
					return err
				}
				actions = append(actions, a)
			}

			rule := access.Rule{
				ID:          id,
				PrincipalID: subject,
				Role:        role,
				TagPattern:  pattern,
				Actions:     access.NewActionSet(actions...),
			}
			var stored any
			if err := apiPost(cmd, baseURL, "/v1/admin/rules", rule, &stored); err != nil {
				return err
			}
			return printJSON(cmd, stored)
		},
	}
	putCmd.Flags().String("id", "", "Rule id (empty = server assigns one)")
	putCmd.Flags().String("principal-id", "", "Subject principal (exclusive with --role)")
	putCmd.Flags().String("role", "", "Subject role (exclusive with --principal-id)")
	putCmd.Flags().String("pattern", "", "Tag pattern the rule covers (trailing * matches a subtree)")
	putCmd.Flags().StringSlice("action", nil, "Granted action: read|write|link|attach (repeatable)")
	addPrincipalFlag(putCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List access rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			var out any
			if err := apiGet(cmd, baseURL, "/v1/admin/rules", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addPrincipalFlag(listCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an access rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requirePrincipal(cmd); err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				return fmt.Errorf("missing --id")
			}
			q := url.Values{}
			q.Set("id", id)
			if err := apiDelete(cmd, baseURL, "/v1/admin/rules", q); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	deleteCmd.Flags().String("id", "", "Rule id")
	addPrincipalFlag(deleteCmd)

	ruleCmd.AddCommand(putCmd, listCmd, deleteCmd)
	return ruleCmd
}
