package cmd

import (
	"fmt"
	"io"

	"dockmate/internal/store/registry"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewServicesCmd creates the services command
func NewServicesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"ls"},
		Short:   "List registered services",
		Long:    `Lists the services in the local registry with their ports and URLs. Secrets are masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			state, err := openLocalState(cfg, false)
			if err != nil {
				return err
			}
			defer state.Close()

			list, err := state.registry.GetServiceList()
			if err != nil {
				return fmt.Errorf("failed to read registry: %w", err)
			}
			return printServices(cmd.OutOrStdout(), list)
		},
	}

	return cmd
}

func printServices(w io.Writer, list []registry.Service) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No services registered")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintln(w, "Services")
	fmt.Fprintln(w, "========")
	fmt.Fprintln(w)

	for _, svc := range list {
		svc = svc.Masked()

		state := green("registered")
		if svc.ContainerId == "" {
			state = yellow("no container")
		}
		fmt.Fprintf(w, "%s (%s)\n", svc.Name, state)
		fmt.Fprintf(w, "  Id:        %s\n", svc.Id)
		fmt.Fprintf(w, "  Template:  %s\n", svc.TemplateId)
		fmt.Fprintf(w, "  Image:     %s\n", svc.Image)
		fmt.Fprintf(w, "  Port:      %d -> %d\n", svc.HostPort, svc.ContainerPort)
		fmt.Fprintf(w, "  URL:       %s\n", cyan(svc.Url))
		if svc.ExternalUrl != "" {
			fmt.Fprintf(w, "  External:  %s\n", svc.ExternalUrl)
		}
		if svc.ParentService != "" {
			fmt.Fprintf(w, "  Manages:   %s\n", svc.ConfiguredFor)
		}
		if svc.Credentials != nil && svc.Credentials.User != "" {
			fmt.Fprintf(w, "  Login:     %s / %s\n", svc.Credentials.User, svc.Credentials.Password)
		}
		fmt.Fprintf(w, "  Created:   %s\n", svc.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(w)
	}
	return nil
}
