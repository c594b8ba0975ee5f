package main

import (
	"os"

	"github.com/spf13/cobra"

	"twido/internal/backup"
)

func newBackupCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, list and restore compressed state snapshots",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Write the current state to the blob store",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
				svc, err := backup.New(a.blobs, backup.WithLogger(a.logger))
				if err != nil {
					return err
				}
				info, err := svc.Export(cmd.Context(), a.userID, a.store)
				if err != nil {
					return err
				}
				a.printf("%s\t%d bytes\n", info.Key, info.Size)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored backups, newest first",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
				svc, err := backup.New(a.blobs, backup.WithLogger(a.logger))
				if err != nil {
					return err
				}
				infos, err := svc.List(cmd.Context(), a.userID)
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					a.printf("no backups\n")
				}
				for _, info := range infos {
					a.printf("%s\t%d bytes\n", info.Key, info.Size)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "restore [key|file]",
			Short: "Replace the current state with a backup (latest when omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				svc, err := backup.New(a.blobs, backup.WithLogger(a.logger))
				if err != nil {
					return err
				}
				var env backup.Envelope
				switch {
				case len(args) == 0:
					key, err := svc.Latest(cmd.Context(), a.userID)
					if err != nil {
						return err
					}
					env, err = svc.Restore(cmd.Context(), key, a.store)
					if err != nil {
						return err
					}
				default:
					env, err = restoreArg(cmd, svc, a, args[0])
					if err != nil {
						return err
					}
				}
				a.printf("restored %d tasks from %s\n", len(env.Document.Tasks), env.CreatedAt.Format("2006-01-02 15:04:05"))
				return nil
			}),
		},
	)
	return cmd
}

// restoreArg restores from a plain JSON envelope when arg names a local file
// and from the blob store otherwise.
func restoreArg(cmd *cobra.Command, svc *backup.Service, a *app, arg string) (backup.Envelope, error) {
	if _, err := os.Stat(arg); err != nil {
		return svc.Restore(cmd.Context(), arg, a.store)
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return backup.Envelope{}, err
	}
	env, err := svc.Decode(raw)
	if err != nil {
		return backup.Envelope{}, err
	}
	a.store.ImportDocument(env.Document)
	return env, nil
}
