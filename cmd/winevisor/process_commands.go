package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/winevisor/winevisor"
)

func createRunCommand(wc command) *cobra.Command {
	return &cobra.Command{
		Use:   "run <executable> [args...]",
		Short: "Launch an executable and return its pid immediately",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := wc.eng.Execute(args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Println(pid)
			return nil
		},
	}
}

func createExecCommand(wc command) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <executable> [args...]",
		Short: "Launch an executable and wait for it to exit",
		Long: `Launch an executable and block until it exits. The child's exit status
becomes this command's exit status; a signal death maps to 128+signo.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc.eng.StartMonitoring()
			defer wc.eng.StopMonitoring()
			code := wc.eng.ExecuteSync(args[0], args[1:]...)
			switch {
			case code == winevisor.ExitSpawnFailure:
				return fmt.Errorf("failed to launch %s", args[0])
			case code < 0:
				os.Exit(128 - code)
			case code > 0:
				os.Exit(code)
			}
			return nil
		},
	}
}

func createPsCommand(wc command) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List tracked processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs := wc.eng.GetAllProcesses()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PID\tSTATE\tRSS\tCPU%\tSTARTED\tEXE")
			for _, r := range recs {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%.1f\t%s\t%s\n",
					r.PID, r.State, r.MemoryRSS, r.CPUPercent,
					r.StartTime.Format(time.RFC3339), r.ExePath)
			}
			return w.Flush()
		},
	}
}

// createSignalCommands builds the four signal-delivery verbs. They share
// shape: one pid argument, one engine call.
func createSignalCommands(wc command) []*cobra.Command {
	mk := func(use, short string, fn func(int) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <pid>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				pid, err := parsePID(args[0])
				if err != nil {
					return err
				}
				return fn(pid)
			},
		}
	}
	cmds := []*cobra.Command{
		mk("pause", "Suspend a tracked process (SIGSTOP)", wc.eng.Pause),
		mk("resume", "Resume a suspended process (SIGCONT)", wc.eng.Resume),
		mk("kill", "Forcibly kill a tracked process (SIGKILL)", func(pid int) error {
			return wc.eng.Kill(pid)
		}),
		mk("terminate", "Request graceful shutdown (SIGTERM)", wc.eng.Terminate),
	}
	cmds = append(cmds, &cobra.Command{
		Use:   "killall",
		Short: "Forcibly kill every tracked process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return wc.eng.KillAll()
		},
	})
	return cmds
}

func createForgetCommand(wc command) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <pid>",
		Short: "Drop a terminated process from the tracking table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			if rec, ok := wc.eng.GetProcessInfo(pid); ok && !rec.State.Terminal() {
				return fmt.Errorf("pid %d is still %s", pid, rec.State)
			}
			if !wc.eng.Forget(pid) {
				return fmt.Errorf("pid %d is not tracked", pid)
			}
			return nil
		},
	}
}

func createConfigShowCommand(wc command) *cobra.Command {
	return &cobra.Command{
		Use:   "config-show",
		Short: "Print the effective launch configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return wc.showConfig()
		},
	}
}
