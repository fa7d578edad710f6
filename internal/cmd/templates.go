package cmd

import (
	"fmt"
	"io"
	"strings"

	"dockmate/internal/template"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewTemplatesCmd creates the templates command
func NewTemplatesCmd(opts *globalOptions) *cobra.Command {
	var showImages bool

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List service templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			catalog := template.NewCatalog(cfg.TemplateOverlayPath, cfg.AllowedImages)
			if err := catalog.Load(); err != nil {
				return fmt.Errorf("load template catalog: %w", err)
			}
			printTemplates(cmd.OutOrStdout(), catalog.List())
			if showImages {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "Allowed images:")
				for _, ref := range catalog.AllowedImages() {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ref)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showImages, "images", false, "Also print the image allow-list")

	return cmd
}

func printTemplates(w io.Writer, list []template.Template) {
	bold := color.New(color.Bold).SprintFunc()

	for _, tpl := range list {
		var flags []string
		if tpl.HasManagerOption {
			flags = append(flags, "manager:"+tpl.ManagerTemplateId)
		}
		if tpl.HasProjectOption {
			flags = append(flags, "project")
		}
		if tpl.IsManager {
			flags = append(flags, "manages:"+tpl.DbKind)
		}
		line := fmt.Sprintf("%-16s %-36s %5d -> %-5d", bold(tpl.Id), tpl.ImageRef(), tpl.DefaultPort, tpl.ContainerPort)
		if len(flags) > 0 {
			line += "  [" + strings.Join(flags, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}
