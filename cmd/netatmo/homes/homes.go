// Package homescmd lists camera homes, their cameras and who is at home.
package homescmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	netatmo "github.com/cgtobi/netatmo-api-go"
	"github.com/cgtobi/netatmo-api-go/cmd/netatmo/internal/cli"
)

// NewHomesCmd creates the homes command.
func NewHomesCmd() *cobra.Command {
	var homeID string

	cmd := &cobra.Command{
		Use:   "homes",
		Short: "List camera homes, cameras and persons at home",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cli.NewSession(cmd, "")
			if err != nil {
				return err
			}
			if err := sess.RequireAuth(); err != nil {
				return err
			}

			data, err := sess.Manager.GetHomeData(cmd.Context(), homeID, 0)
			if err != nil {
				return err
			}

			if len(data.Homes) == 0 {
				fmt.Println("No homes found.")
				return nil
			}

			// Use tabwriter for aligned output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "HOME\tCAMERA\tTYPE\tSTATUS\tSD CARD")

			for _, home := range data.Homes {
				if len(home.Cameras) == 0 {
					fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", home.Name)
					continue
				}
				for _, camera := range home.Cameras {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						home.Name,
						camera.Name,
						cameraType(camera.Type),
						camera.Status,
						camera.SDStatus,
					)
				}
			}

			if err := w.Flush(); err != nil {
				return err
			}

			for _, home := range data.Homes {
				fmt.Printf("\n%s: %s\n", home.Name, atHome(home.Persons))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&homeID, "home", "", "Only show the home with this ID")

	return cmd
}

// cameraType maps the wire type codes to readable product names.
func cameraType(t string) string {
	switch t {
	case netatmo.TypeWelcomeCamera:
		return "Welcome"
	case netatmo.TypePresenceCamera:
		return "Presence"
	default:
		return t
	}
}

// atHome lists the known persons currently seen at home.
func atHome(persons []*netatmo.Person) string {
	var names []string
	for _, person := range persons {
		if person.Known() && !person.OutOfSight {
			names = append(names, person.Pseudo)
		}
	}
	if len(names) == 0 {
		return "nobody at home"
	}
	return "at home: " + strings.Join(names, ", ")
}
