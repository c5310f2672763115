package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshharrison/wfpath/internal/config"
	"github.com/joshharrison/wfpath/internal/drilldown"
	"github.com/joshharrison/wfpath/internal/feed"
	"github.com/joshharrison/wfpath/internal/logger"
	"github.com/joshharrison/wfpath/internal/remote"
	"github.com/joshharrison/wfpath/internal/reporter"
	"github.com/joshharrison/wfpath/internal/server"
	"github.com/joshharrison/wfpath/internal/state"
	"github.com/joshharrison/wfpath/internal/surface/term"
	"github.com/joshharrison/wfpath/internal/translate"
	"github.com/joshharrison/wfpath/internal/ui"
	"github.com/joshharrison/wfpath/internal/view"
)

const defaultConfigFile = "wfpath.yaml"

var (
	flagConfig   string
	flagFeed     string
	flagJSON     bool
	flagLogLevel string
	flagFormat   string
	flagSelect   string
	flagAddr     string
	flagURL      string

	cfg *config.Config
	log *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wfpath",
		Short: "Explore the dependency paths of a workflow execution",
		Long: `wfpath builds a dependency graph from the task executions of a workflow
run, highlights everything upstream and downstream of a selected task, and
drills down into the sub-workflows a task spawned.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigFile, "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagFeed, "feed", "", "Task feed file (.json, .yaml, .hcl)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(traceCmd())
	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(drillCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pushCmd())
	rootCmd.AddCommand(remoteCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger. The default config
// file is optional, an explicitly named one is not.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(flagConfig, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if flagFeed != "" {
		cfg.Feed.Path = flagFeed
		cfg.Feed.Command = ""
		cfg.Feed.Args = nil
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	log, err = logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

// feedSource names where tasks come from, for persisted state.
func feedSource() string {
	if cfg.Feed.Path != "" {
		return cfg.Feed.Path
	}
	if cfg.Feed.Command != "" {
		return strings.Join(append([]string{cfg.Feed.Command}, cfg.Feed.Args...), " ")
	}
	return ""
}

func loadFeed(ctx context.Context) (*feed.Feed, error) {
	if cfg.Feed.Path != "" {
		log.Debug("loading feed", zap.String("path", cfg.Feed.Path))
		return feed.Load(cfg.Feed.Path)
	}
	if cfg.Feed.Command != "" {
		log.Debug("fetching feed", zap.String("command", cfg.Feed.Command), zap.Strings("args", cfg.Feed.Args))
		return feed.NewCommand(cfg.Feed.Command, cfg.Feed.Args...).Fetch(ctx)
	}
	return nil, errors.New("no task feed: pass --feed or set feed.path or feed.command in the config")
}

// persistedSelection returns the stored selection for the current feed.
func persistedSelection() string {
	if !state.Exists() {
		return ""
	}
	st, err := state.Load()
	if err != nil {
		log.Warn("ignoring unreadable selection state", zap.Error(err))
		return ""
	}
	if st.Feed != feedSource() {
		return ""
	}
	return st.Current()
}

// termFactory builds terminal surfaces and keeps the most recent one.
type termFactory struct {
	last *term.Surface
}

func (f *termFactory) New(data translate.GraphData) (view.Surface, error) {
	f.last = term.New(data)
	return f.last, nil
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the task graph with the selected path highlighted",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeed(cmd.Context())
			if err != nil {
				return err
			}

			selected := flagSelect
			if selected == "" {
				selected = persistedSelection()
			}

			factory := &termFactory{}
			return view.With(factory.New, f.Tasks, func(v *view.View) error {
				v.TaskSelected(selected)
				snap := v.Snapshot()

				switch {
				case flagJSON || flagFormat == "json":
					return outputJSON(server.NewPathPayload(snap.Generation, snap.Selected, snap.Result.Graph, snap.Active))
				case flagFormat == "dot":
					factory.last.RenderDOT(os.Stdout)
				default:
					factory.last.Render(os.Stdout)
					fmt.Println()
					reporter.New(snap.Result).PrintSummary(os.Stdout)
				}
				return nil
			}, view.WithLogger(log))
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format (ascii, dot, json)")
	cmd.Flags().StringVar(&flagSelect, "select", "", "Task to highlight instead of the stored selection")

	return cmd
}

func traceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace [task-id]",
		Short: "List everything upstream and downstream of a task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeed(cmd.Context())
			if err != nil {
				return err
			}

			taskID := persistedSelection()
			if len(args) == 1 {
				taskID = args[0]
			}
			if taskID == "" {
				return errors.New("no task given and no task selected")
			}

			rpt := reporter.New(translate.Build(f.Tasks))
			if flagJSON {
				data, err := rpt.JSON(taskID)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			return rpt.PrintTrace(os.Stdout, taskID)
		},
	}
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <task-id>",
		Short: "Select a task and remember it for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeed(cmd.Context())
			if err != nil {
				return err
			}
			taskID := args[0]
			if _, ok := f.Task(taskID); !ok {
				return fmt.Errorf("task %q is not in the feed", taskID)
			}

			st, err := state.LoadOrNew(feedSource())
			if err != nil {
				return err
			}
			if err := st.Select(taskID); err != nil {
				return err
			}

			return view.With((&termFactory{}).New, f.Tasks, func(v *view.View) error {
				active := v.TaskSelected(taskID)
				snap := v.Snapshot()
				if flagJSON {
					return outputJSON(server.NewPathPayload(snap.Generation, taskID, snap.Result.Graph, active))
				}
				fmt.Printf("%s %s\n\n", ui.BoldGreen("Selected"), ui.TaskPrefix(taskID))
				reporter.New(snap.Result).PrintMarkers(os.Stdout, active)
				return nil
			}, view.WithLogger(log))
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the remembered selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !state.Exists() {
				fmt.Println(ui.Dim("Nothing selected."))
				return nil
			}
			st, err := state.Load()
			if err != nil {
				return err
			}
			if err := st.Clear(); err != nil {
				return err
			}
			fmt.Println(ui.Green("Selection cleared."))
			return nil
		},
	}
}

func drillCmd() *cobra.Command {
	var flagWait time.Duration

	cmd := &cobra.Command{
		Use:   "drill <task-id>",
		Short: "Find the sub-workflow executions spawned by a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeed(cmd.Context())
			if err != nil {
				return err
			}

			var navigated *feed.SubWorkflowExecution
			nav := drilldown.NavigatorFunc(func(exec feed.SubWorkflowExecution) {
				navigated = &exec
			})
			dc := drilldown.New(drilldown.FeedResolver{Feed: f}, nav, log)

			ctx, cancel := context.WithTimeout(cmd.Context(), flagWait)
			defer cancel()

			return view.With((&termFactory{}).New, f.Tasks, func(v *view.View) error {
				_, done, ok := v.DrillDown(ctx, args[0])
				if !ok {
					return fmt.Errorf("task %q is not in the graph", args[0])
				}

				var out drilldown.Outcome
				select {
				case out = <-done:
				case <-ctx.Done():
					return fmt.Errorf("drill-down: %w", ctx.Err())
				}
				if out.Err != nil {
					return out.Err
				}

				if flagJSON {
					return outputJSON(out.Executions)
				}
				switch {
				case navigated != nil:
					fmt.Printf("%s %s %s\n", ui.BoldGreen("→"), ui.Bold(navigated.WorkflowName), ui.Dim(navigated.ID))
				case len(out.Executions) == 0:
					fmt.Println(ui.Dim("No sub-workflow executions."))
				default:
					fmt.Printf("%s\n", ui.BoldYellow(fmt.Sprintf("%d sub-workflow executions:", len(out.Executions))))
					for _, e := range v.Candidates() {
						fmt.Printf("  %s %s %s\n", ui.StateIcon(e.State), ui.Bold(e.WorkflowName), ui.Dim(e.ID))
					}
				}
				return nil
			}, view.WithLogger(log), view.WithDrillDown(dc))
		},
	}

	cmd.Flags().DurationVar(&flagWait, "timeout", 30*time.Second, "How long to wait for the lookup")

	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph to browser surfaces over Socket.IO",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := cfg.Server.Addr
			if flagAddr != "" {
				addr = flagAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(log)
			if cfg.Feed.Path != "" || cfg.Feed.Command != "" {
				f, err := loadFeed(ctx)
				if err != nil {
					return err
				}
				if err := srv.LoadFeed(f); err != nil {
					return err
				}
				if sel := persistedSelection(); sel != "" {
					srv.Select(sel)
				}
			}

			ui.PrintBanner(os.Stderr, "serving on http://"+addr)
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send the task feed to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeed(cmd.Context())
			if err != nil {
				return err
			}
			body, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("marshal feed: %w", err)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, serverURL()+"/tasks", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("push feed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusCreated {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
			}
			var g server.GraphPayload
			if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if flagJSON {
				return outputJSON(g)
			}
			fmt.Printf("%s %d tasks, %d edges (surface %d)\n", ui.BoldGreen("Pushed"), len(g.Nodes), len(g.Edges), g.Surface)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagURL, "url", "", "Server URL (overrides server.url)")

	return cmd
}

func remoteCmd() *cobra.Command {
	var flagClear bool

	cmd := &cobra.Command{
		Use:   "remote [task-id]",
		Short: "Change the selection of a running server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := ""
			switch {
			case flagClear:
			case len(args) == 1:
				taskID = args[0]
			default:
				return errors.New("give a task id or --clear")
			}

			p, err := remote.New(serverURL(), log).Select(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(p)
			}
			if p.Selected == "" {
				fmt.Println(ui.Green("Selection cleared."))
				return nil
			}
			fmt.Printf("%s %s  %s\n", ui.BoldGreen("Selected"), ui.TaskPrefix(p.Selected),
				ui.Dim(fmt.Sprintf("%d tasks, %d edges in path", len(p.Nodes), len(p.Edges))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagClear, "clear", false, "Clear the selection")
	cmd.Flags().StringVar(&flagURL, "url", "", "Server URL (overrides server.url)")

	return cmd
}

func serverURL() string {
	if flagURL != "" {
		return strings.TrimRight(flagURL, "/")
	}
	return strings.TrimRight(cfg.Server.URL, "/")
}

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
