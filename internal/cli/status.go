package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

// statusCommand creates the status command.
func (c *CLI) statusCommand() *cobra.Command {
	var backend backendFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the analysis backend",
		Long:  `Probe the analysis backend's health endpoint and show what it reports about itself.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, err := c.newService(ctx, &backend)
			if err != nil {
				return err
			}

			printKeyValue("server", StyleLink.Render(svc.BaseURL()))
			st := svc.CheckStatus(ctx)
			if !st.Online {
				printError("offline: %s", st.Message)
				printNextStep("Point parsegraph at another backend", "parsegraph status --server <url>")
				return fmt.Errorf("backend %s is offline", svc.BaseURL())
			}
			printSuccess("%s", st.Message)

			info, ok := svc.ServerInfo(ctx)
			if !ok {
				printDetail("no server info available")
				return nil
			}
			fmt.Fprintln(stdout, StyleTitle.Render("Server info"))
			for _, k := range slices.Sorted(maps.Keys(info)) {
				printKeyValue(k, fmt.Sprint(info[k]))
			}
			return nil
		},
	}

	backend.register(cmd)
	return cmd
}
