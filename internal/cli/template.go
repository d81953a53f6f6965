package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-node-relnotes/internal/store"
	"github.com/spf13/cobra"
)

// NewTemplateCmd creates the group of commands managing templates stored in
// Redis for the worker
func NewTemplateCmd(storeFn func() *store.TemplateStore) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage stored templates",
	}

	cmd.AddCommand(
		newTemplatePushCmd(storeFn),
		newTemplateShowCmd(storeFn),
		newTemplateListCmd(storeFn),
		newTemplateDeleteCmd(storeFn),
	)

	return cmd
}

func newTemplatePushCmd(storeFn func() *store.TemplateStore) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "push NAME FILE",
		Short: "Store a template file under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readTemplateFile(args[1])
			if err != nil {
				return err
			}
			if err := storeFn().Put(cmd.Context(), args[0], lines, ttl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Template stored: %s (%d lines)\n", args[0], len(lines))
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Expire the template after this duration")
	return cmd
}

func newTemplateShowCmd(storeFn func() *store.TemplateStore) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := storeFn().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return nil
		},
	}
}

func newTemplateListCmd(storeFn func() *store.TemplateStore) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := storeFn().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newTemplateDeleteCmd(storeFn func() *store.TemplateStore) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storeFn().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Template deleted: %s\n", args[0])
			return nil
		},
	}
}
