package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"dockmate/internal/apperr"
	"dockmate/internal/portalloc"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultScanStart = 3000

type portResolver interface {
	Resolve(ctx context.Context, req portalloc.ResolveModel) (int, error)
}

// NewPortCmd creates the port command
func NewPortCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port [preferred]",
		Short: "Check whether a host port is free for a new service",
		Long: `Without an argument prints the first free port from 3000 upward.
With a preferred port reports whether it is free and, if not, the next free one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preferred := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("port must be a number: %q", args[0])
				}
				preferred = n
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			state, err := openLocalState(cfg, false)
			if err != nil {
				return err
			}
			defer state.Close()

			return checkPort(cmd.Context(), cmd.OutOrStdout(), state.allocator, preferred)
		},
	}

	return cmd
}

func checkPort(ctx context.Context, w io.Writer, resolver portResolver, preferred int) error {
	if preferred == 0 {
		port, err := resolver.Resolve(ctx, portalloc.ResolveModel{Start: defaultScanStart})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\n", port)
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	_, err := resolver.Resolve(ctx, portalloc.ResolveModel{Preferred: preferred})
	switch {
	case err == nil:
		fmt.Fprintf(w, "%d %s\n", preferred, green("free"))
		return nil
	case apperr.Is(err, apperr.PortConflict):
		fmt.Fprintf(w, "%d %s: %v\n", preferred, red("in use"), err)
	default:
		return err
	}

	next, err := resolver.Resolve(ctx, portalloc.ResolveModel{Start: preferred + 1})
	if err != nil {
		fmt.Fprintln(w, "no free port above it")
		return nil
	}
	fmt.Fprintf(w, "next free: %d\n", next)
	return nil
}
