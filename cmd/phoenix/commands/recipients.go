package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/phoenix-warmup/internal/service"
)

const defaultSeedCount = 50

var recipientsCmd = &cobra.Command{
	Use:     "recipients",
	Aliases: []string{"recipient"},
	Short:   "Manage the recipient pool",
}

func init() {
	var showAll bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recipients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				all, err := svc.Recipients(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "EMAIL\tNAME\tACTIVE\tUSED\tLAST USED")
				active := 0
				for _, r := range all {
					if r.Active {
						active++
					} else if !showAll {
						continue
					}
					last := "never"
					if !r.LastUsed.IsZero() {
						last = r.LastUsed.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", r.Email, r.Name, r.Active, r.CountUsed, last)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d active of %d\n", active, len(all))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVarP(&showAll, "all", "a", false, "include deactivated recipients")

	var name string
	addCmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Add an address to the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				added, err := svc.AddRecipient(ctx, args[0], name)
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already in the pool\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "recipient name used in greetings")

	var count int
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Add synthetic recipients to the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 || count > 1000 {
				return errors.New("count must be between 1 and 1000")
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				added, err := svc.SeedRecipients(ctx, count)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d recipients\n", added)
				return nil
			})
		},
	}
	seedCmd.Flags().IntVarP(&count, "count", "n", defaultSeedCount, "number of recipients to add")

	deactivateCmd := &cobra.Command{
		Use:   "deactivate <email>",
		Short: "Stop sending to an address but keep it on file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.DeactivateRecipient(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:     "remove <email>",
		Aliases: []string{"rm"},
		Short:   "Delete an address from the pool",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.DeleteRecipient(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}

	recipientsCmd.AddCommand(listCmd, addCmd, seedCmd, deactivateCmd, removeCmd)
	rootCmd.AddCommand(recipientsCmd)
}
