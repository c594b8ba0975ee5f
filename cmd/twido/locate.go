package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"twido/pkg/domain"
)

var errNoCoordinate = errors.New("--lat and --lon are required")

func requireCoordinate(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
		return errNoCoordinate
	}
	return nil
}

func newLocateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Register home/work locations and check for a mode suggestion",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "register <home|work>",
			Short: "Store the current coordinate as home or work",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				if err := requireCoordinate(cmd); err != nil {
					return err
				}
				coord, err := a.store.RegisterLocation(cmd.Context(), domain.LocationKind(args[0]))
				if err != nil {
					return err
				}
				a.printf("%s registered at %.5f,%.5f\n", args[0], coord.Latitude, coord.Longitude)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "check",
			Short: "Suggest a mode switch when at the other registered place",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
				if err := requireCoordinate(cmd); err != nil {
					return err
				}
				mode, ok, err := a.store.CheckLocation(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					a.printf("no suggestion (mode %s)\n", a.store.Mode())
					return nil
				}
				a.printf("suggest switching to %s mode\n", mode)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the registered locations",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
				reg := a.store.Locations()
				a.printf("home: %s\nwork: %s\n", formatCoordinate(reg.Home), formatCoordinate(reg.Work))
				return nil
			}),
		},
	)
	return cmd
}

func formatCoordinate(c *domain.Coordinate) string {
	if c == nil {
		return "unset"
	}
	return fmt.Sprintf("%.5f,%.5f", c.Latitude, c.Longitude)
}
