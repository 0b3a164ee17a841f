package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loykin/spawnd/pkg/client"
)

var (
	stateRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	stateStopped  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	stateDisabled = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
)

func createStatusCommand() *cobra.Command {
	statusFlags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show supervised processes of a running daemon",
		Long:  "Query the status API of a daemon started with 'spawnd serve --listen'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				statusFlags.Name = args[0]
			}
			return runStatus(cmd.Context(), cmd.OutOrStdout(), statusFlags)
		},
	}

	cmd.Flags().StringVar(&statusFlags.Name, "name", "", "show a single process")
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&statusFlags.APIUrl, "api-url", client.DefaultConfig().BaseURL, "daemon status API base URL")
	cmd.Flags().DurationVar(&statusFlags.APITimeout, "api-timeout", 10*time.Second, "API request timeout")
	cmd.Flags().BoolVar(&statusFlags.Insecure, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().StringVar(&statusFlags.CACert, "ca-cert", "", "CA certificate for an https API URL")
	return cmd
}

func newAPIClient(f *StatusFlags) *client.Client {
	cfg := client.Config{
		BaseURL:  f.APIUrl,
		Timeout:  f.APITimeout,
		Insecure: f.Insecure,
	}
	if f.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{Enabled: true, CACert: f.CACert}
	}
	return client.New(cfg)
}

func runStatus(ctx context.Context, out io.Writer, f *StatusFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := newAPIClient(f)
	if !c.IsReachable(ctx) {
		return fmt.Errorf("daemon not reachable at %s - start it with 'spawnd serve --listen'", f.APIUrl)
	}

	var list []client.ProcessStatus
	if f.Name != "" {
		st, err := c.StatusOf(ctx, f.Name)
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("no process named %q", f.Name)
		}
		if err != nil {
			return err
		}
		list = []client.ProcessStatus{st}
	} else {
		var err error
		if list, err = c.Status(ctx); err != nil {
			return err
		}
	}

	if f.JSON {
		return printJSON(out, list)
	}
	return printTable(out, list)
}

func printJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

func printTable(out io.Writer, list []client.ProcessStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPID\tSTARTS\tLAST EXIT\tCPU%\tMEM MB\tCOMMAND\tSTATE")
	for _, p := range list {
		pid, cpu, mem := "-", "-", "-"
		if p.Running {
			pid = strconv.Itoa(p.PID)
		}
		if p.Usage != nil {
			cpu = strconv.FormatFloat(p.Usage.CPUPercent, 'f', 1, 64)
			mem = strconv.FormatFloat(p.Usage.MemoryMB, 'f', 1, 64)
		}
		exit := "-"
		if p.ExitCode != nil {
			exit = strconv.Itoa(*p.ExitCode)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			p.Name, pid, p.Starts, exit, cpu, mem, p.Command, renderState(p))
	}
	return w.Flush()
}

func renderState(p client.ProcessStatus) string {
	switch {
	case p.Running:
		return stateRunning.Render("running")
	case !p.Enabled:
		return stateDisabled.Render("disabled")
	default:
		return stateStopped.Render("stopped")
	}
}
