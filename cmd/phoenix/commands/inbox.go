package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/ramp"
	"github.com/nhle/phoenix-warmup/internal/service"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Manage warm-up inboxes",
}

var inboxAdd struct {
	password      string
	passwordStdin bool
	name          string
	smtpHost      string
	smtpPort      int
	imapHost      string
	imapPort      int
	workStart     string
	workEnd       string
	stage         int
	skipVerify    bool
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List inboxes with their stage and today's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				inboxes, err := svc.Stores.Inboxes.All(ctx)
				if err != nil {
					return err
				}
				if len(inboxes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No inboxes configured.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "EMAIL\tSTAGE\tSENT\tSTATUS\tLAST SENT\tREASON")
				for _, in := range inboxes {
					last := "never"
					if !in.LastSentAt.IsZero() {
						last = in.LastSentAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%d\t%d/%d\t%s\t%s\t%s\n",
						in.Email, in.Stage, in.DailySent, in.DailyLimit, in.Status, last, in.PausedReason)
				}
				return w.Flush()
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Add an inbox to the warm-up",
		Long: `Add an inbox. The SMTP and IMAP logins are checked before the inbox is
saved unless --skip-verify is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := inboxAdd.password
			if inboxAdd.passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("a password is required (--password or --password-stdin)")
			}

			in := model.NewInbox(args[0], password)
			in.DisplayName = inboxAdd.name
			in.SMTPHost = inboxAdd.smtpHost
			in.SMTPPort = inboxAdd.smtpPort
			in.IMAPHost = inboxAdd.imapHost
			in.IMAPPort = inboxAdd.imapPort
			in.WorkStart = inboxAdd.workStart
			in.WorkEnd = inboxAdd.workEnd
			in.Stage = inboxAdd.stage

			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				ctx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if err := svc.AddInbox(ctx, in, !inboxAdd.skipVerify); err != nil {
					return err
				}
				stage := ramp.ClampStage(in.Stage)
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s at stage %d (%d emails/day)\n",
					in.Email, stage, ramp.DailyLimit(stage))
				return nil
			})
		},
	}
	f := addCmd.Flags()
	f.StringVarP(&inboxAdd.password, "password", "p", "", "app password")
	f.BoolVar(&inboxAdd.passwordStdin, "password-stdin", false, "read the password from stdin")
	f.StringVar(&inboxAdd.name, "name", "", "display name used in the From header")
	f.StringVar(&inboxAdd.smtpHost, "smtp-host", model.DefaultSMTPHost, "SMTP host")
	f.IntVar(&inboxAdd.smtpPort, "smtp-port", model.DefaultSMTPPort, "SMTP port")
	f.StringVar(&inboxAdd.imapHost, "imap-host", model.DefaultIMAPHost, "IMAP host")
	f.IntVar(&inboxAdd.imapPort, "imap-port", model.DefaultIMAPPort, "IMAP port")
	f.StringVar(&inboxAdd.workStart, "work-start", "", "start of the sending window, HH:MM")
	f.StringVar(&inboxAdd.workEnd, "work-end", "", "end of the sending window, HH:MM")
	f.IntVar(&inboxAdd.stage, "stage", 1, "initial ramp stage (1-4)")
	f.BoolVar(&inboxAdd.skipVerify, "skip-verify", false, "save without testing the logins")

	removeCmd := &cobra.Command{
		Use:     "remove <email>",
		Aliases: []string{"rm"},
		Short:   "Remove an inbox and its stored password",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.RemoveInbox(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}

	var pauseReason string
	pauseCmd := &cobra.Command{
		Use:   "pause <email>",
		Short: "Stop sending from an inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.PauseInbox(ctx, args[0], pauseReason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused %s\n", args[0])
				return nil
			})
		},
	}
	pauseCmd.Flags().StringVar(&pauseReason, "reason", "", "reason shown on the dashboard")

	resumeCmd := &cobra.Command{
		Use:   "resume <email>",
		Short: "Resume a paused inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.ResumeInbox(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s\n", args[0])
				return nil
			})
		},
	}

	stageCmd := &cobra.Command{
		Use:   "stage <email> <1-4>",
		Short: "Set the ramp stage of an inbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := strconv.Atoi(args[1])
			if err != nil || stage < 1 || stage > ramp.MaxStage {
				return fmt.Errorf("stage must be between 1 and %d", ramp.MaxStage)
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.SetStage(ctx, args[0], stage); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now at stage %d (%d emails/day)\n",
					args[0], stage, ramp.DailyLimit(stage))
				return nil
			})
		},
	}

	testCmd := &cobra.Command{
		Use:   "test <email>",
		Short: "Check the SMTP and IMAP logins of a stored inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				ctx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if err := svc.TestStoredInbox(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "SMTP and IMAP logins OK for %s\n", args[0])
				return nil
			})
		},
	}

	inboxCmd.AddCommand(listCmd, addCmd, removeCmd, pauseCmd, resumeCmd, stageCmd, testCmd)
	rootCmd.AddCommand(inboxCmd)
}
