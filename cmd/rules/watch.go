package rules

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/logger"
	"github.com/endorses/colorcat/internal/pkg/metrics"
	"github.com/endorses/colorcat/internal/pkg/signals"
)

var metricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload the rules whenever a rules file changes",
	Long: `Load the rules and keep them current: the rules are reloaded when the user
or global rules file changes and on SIGHUP. A reload that fails keeps the
previous rules. Stop with Ctrl-C.

With --metrics-addr, reload counts and rule counts are served in the
Prometheus format on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		cleanup := signals.SetupHandler(ctx, cancel)
		defer cleanup()

		e, err := cmdutil.LoadEngine()
		if err != nil {
			return err
		}
		defer e.Cleanup()

		var x *metrics.Exporter
		if addr := cmdutil.GetStringConfig("metrics.addr", metricsAddr); addr != "" {
			x = metrics.NewExporter()
			if err := x.Start(addr); err != nil {
				return err
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer stopCancel()
				if err := x.Stop(stopCtx); err != nil {
					logger.Warn("Failed to stop metrics server", "error", err)
				}
			}()
		}

		return watch(ctx, e, x, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
}

// watch reports every reload until ctx is done. x may be nil.
func watch(ctx context.Context, e *colorfilter.Engine, x *metrics.Exporter, out io.Writer) error {
	report := func(err error) {
		if x != nil {
			x.ObserveReload(err)
		}
		if err != nil {
			fmt.Fprintf(out, "reload failed, keeping previous rules: %v\n", err)
			return
		}
		rules := e.Rules()
		if x != nil {
			x.SetRuleCounts(len(rules), tmpInUse(e))
		}
		fmt.Fprintf(out, "loaded %d rules from %s\n", len(rules), e.ActivePath())
	}
	report(nil)

	w := colorfilter.NewWatcher(e, report)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := w.Stop(); err != nil {
			logger.Warn("Failed to stop watcher", "error", err)
		}
	}()

	stopHUP := signals.HandleReload(ctx, func() { report(e.Reload()) })
	defer stopHUP()

	<-ctx.Done()
	return nil
}

func tmpInUse(e *colorfilter.Engine) int {
	n := 0
	for _, r := range e.CloneTmp() {
		if r.FilterText != "" {
			n++
		}
	}
	return n
}
