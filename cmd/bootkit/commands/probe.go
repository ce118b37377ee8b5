package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/probe"
	"github.com/bootkit/bootkit/pkg/report"
)

// managerView is the printable state of one package manager.
type managerView struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Packages  int    `json:"packages"`
	Sources   int    `json:"sources"`
	Error     string `json:"error,omitempty"`
}

// hostView is the printable host snapshot.
type hostView struct {
	Managers []managerView     `json:"managers"`
	Tools    map[string]bool   `json:"tools"`
	Runtimes map[string]string `json:"runtimes"`
	Env      map[string]string `json:"environment"`
	Dotfiles struct {
		Source     string `json:"source,omitempty"`
		Origin     string `json:"origin,omitempty"`
		HasTargets bool   `json:"has_targets"`
	} `json:"dotfiles"`
}

func newProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show what the host has of the manifest",
		Long: `Probe the host for everything the manifest refers to and print the
snapshot the planner would use: package manager availability and installed
package counts, runtime commands found on the path, environment variables and
dotfile manager state. Probes that fail are shown with their error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, err := loadManifest()
			if err != nil {
				return &exitError{code: report.ExitFatal, err: err}
			}
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}

			prober := probe.New(p.adapters, p.pc)
			host, err := prober.Snapshot(ctx, m)
			if err != nil {
				return err
			}

			view := hostView{Tools: host.Tools, Runtimes: host.Runtimes, Env: host.Env}
			for name, ms := range host.Managers {
				mv := managerView{Name: name, Available: ms.Available, Packages: len(ms.Packages), Sources: len(ms.Sources)}
				if ms.PackagesErr != nil {
					mv.Error = ms.PackagesErr.Error()
				}
				view.Managers = append(view.Managers, mv)
			}
			sort.Slice(view.Managers, func(i, j int) bool { return view.Managers[i].Name < view.Managers[j].Name })
			view.Dotfiles.Source = host.Dotfiles.SourcePath
			view.Dotfiles.Origin = host.Dotfiles.Origin
			view.Dotfiles.HasTargets = host.Dotfiles.HasTargets

			out := cmd.OutOrStdout()
			if jsonOutput {
				return report.WriteJSON(out, view)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MANAGER\tAVAILABLE\tPACKAGES\tSOURCES\tERROR")
			for _, mv := range view.Managers {
				fmt.Fprintf(w, "%s\t%v\t%d\t%d\t%s\n", mv.Name, mv.Available, mv.Packages, mv.Sources, mv.Error)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "TOOL\tAVAILABLE")
			for _, name := range sortedKeys(view.Tools) {
				fmt.Fprintf(w, "%s\t%v\n", name, view.Tools[name])
			}
			for _, rt := range m.Runtimes {
				path, ok := host.Runtimes[rt.Command]
				if !ok {
					path = "-"
				}
				fmt.Fprintf(w, "%s (%s)\t%s\n", rt.Name, rt.Command, path)
			}
			for _, ev := range m.Environment {
				value, ok := host.Env[ev.Key]
				if !ok {
					value = "-"
				}
				fmt.Fprintf(w, "$%s\t%s\n", ev.Key, value)
			}
			if m.Dotfiles != nil {
				fmt.Fprintf(w, "dotfiles\t%s %s\n", orDash(view.Dotfiles.Source), orDash(view.Dotfiles.Origin))
			}
			return w.Flush()
		},
	}

	return cmd
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
