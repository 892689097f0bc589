// Package stationscmd lists weather stations and their current readings.
package stationscmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	netatmo "github.com/cgtobi/netatmo-api-go"
	"github.com/cgtobi/netatmo-api-go/cmd/netatmo/internal/cli"
)

// NewStationsCmd creates the stations command.
func NewStationsCmd() *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "List weather stations and current readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, "")
			if err != nil {
				return err
			}
			if err := sess.RequireAuth(); err != nil {
				return err
			}

			data, err := sess.Manager.GetStationsData(cmd.Context(), deviceID)
			if err != nil {
				return err
			}

			if len(data.Devices) == 0 {
				fmt.Println("No stations found.")
				return nil
			}

			// Use tabwriter for aligned output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "STATION\tMODULE\tTYPE\tTEMP\tHUMIDITY\tCO2\tBATTERY")

			for _, device := range data.Devices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					device.StationName,
					device.ModuleName,
					device.Type,
					fmtTemp(device.DashboardData),
					fmtHumidity(device.DashboardData),
					fmtCO2(device.DashboardData),
					"-",
				)
				for _, module := range device.Modules {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d%%\n",
						device.StationName,
						module.ModuleName,
						module.Type,
						fmtTemp(module.DashboardData),
						fmtHumidity(module.DashboardData),
						fmtCO2(module.DashboardData),
						module.BatteryPercent,
					)
				}
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Only show the station with this MAC address")

	return cmd
}

func fmtTemp(d *netatmo.DashboardData) string {
	if d == nil || d.Temperature == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f°C", *d.Temperature)
}

func fmtHumidity(d *netatmo.DashboardData) string {
	if d == nil || d.Humidity == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *d.Humidity)
}

func fmtCO2(d *netatmo.DashboardData) string {
	if d == nil || d.CO2 == nil {
		return "-"
	}
	return fmt.Sprintf("%d ppm", *d.CO2)
}
