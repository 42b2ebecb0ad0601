package colorize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/dissect"
	"github.com/endorses/colorcat/internal/pkg/logger"
	"github.com/endorses/colorcat/internal/pkg/output"
	"github.com/endorses/colorcat/internal/pkg/pcapio"
	"github.com/endorses/colorcat/internal/pkg/render"
	"github.com/endorses/colorcat/internal/pkg/signals"
)

// ColorizeCmd prints a capture file with every packet painted by its rule
var ColorizeCmd = &cobra.Command{
	Use:   "colorize <capture>",
	Short: "Print a capture file painted by the color rules",
	Long: `Read a pcap or pcapng file and print one row per packet, painted with the
colors of the first matching color rule.

Temporary rules take precedence over every saved rule and last only for
this run.

Examples:
  cc colorize trace.pcap
  cc colorize trace.pcapng --tmp 1='ip.addr == 10.0.0.5' --summary
  cc colorize trace.pcap --write-rule "Bad TCP" --write bad.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: runColorize,
}

var (
	tmpFilters []string
	noColor    bool
	trueColor  bool
	summary    bool
	jsonOut    bool
	writeFile  string
	writeRule  string
	limit      int
)

func init() {
	ColorizeCmd.Flags().StringArrayVar(&tmpFilters, "tmp", nil, "temporary rule as SLOT=FILTER (slot 1-10, repeatable)")
	ColorizeCmd.Flags().BoolVar(&noColor, "no-color", false, "print rows without colors")
	ColorizeCmd.Flags().BoolVar(&trueColor, "color", false, "force 24-bit colors even when not writing to a terminal")
	ColorizeCmd.Flags().BoolVar(&summary, "summary", false, "print per-rule packet counts at the end")
	ColorizeCmd.Flags().BoolVar(&jsonOut, "json", false, "print one JSON object per packet instead of painted rows")
	ColorizeCmd.Flags().StringVarP(&writeFile, "write", "w", "", "write packets matched by a rule to this pcap file")
	ColorizeCmd.Flags().StringVar(&writeRule, "write-rule", "", "only write packets matched by the rule with this name")
	ColorizeCmd.Flags().IntVarP(&limit, "count", "c", 0, "stop after this many packets (0 = all)")
}

// Options drive one colorize run
type Options struct {
	Capture    string
	TmpFilters []string
	NoColor    bool
	TrueColor  bool
	Summary    bool
	JSON       bool
	WriteFile  string
	WriteRule  string
	Limit      int
}

// Stats counts packets per matched rule
type Stats struct {
	Packets   int            `json:"packets"`
	Unmatched int            `json:"unmatched"`
	ByRule    map[string]int `json:"by_rule"`
	Written   int64          `json:"written,omitempty"`
}

// PacketRecord is the JSON form of one classified packet
type PacketRecord struct {
	Number     int    `json:"number"`
	Src        string `json:"src"`
	Dst        string `json:"dst"`
	SrcPort    string `json:"src_port,omitempty"`
	DstPort    string `json:"dst_port,omitempty"`
	Protocol   string `json:"protocol"`
	Length     int    `json:"length"`
	Info       string `json:"info,omitempty"`
	Rule       string `json:"rule,omitempty"`
	Foreground string `json:"foreground,omitempty"`
	Background string `json:"background,omitempty"`
}

func runColorize(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	cleanup := signals.SetupHandler(ctx, cancel)
	defer cleanup()

	e, err := cmdutil.LoadEngine()
	if err != nil {
		return err
	}
	defer e.Cleanup()

	opts := Options{
		Capture:    args[0],
		TmpFilters: tmpFilters,
		NoColor:    noColor,
		TrueColor:  trueColor,
		Summary:    summary,
		JSON:       jsonOut,
		WriteFile:  writeFile,
		WriteRule:  writeRule,
		Limit:      limit,
	}
	_, err = Run(ctx, e, opts, cmd.OutOrStdout())
	return err
}

// ParseTmpFilter parses "SLOT=FILTER"
func ParseTmpFilter(s string) (int, string, error) {
	slotText, filter, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", fmt.Errorf("temporary rule %q: want SLOT=FILTER", s)
	}
	slot, err := strconv.Atoi(strings.TrimSpace(slotText))
	if err != nil || slot < 1 || slot > constants.TmpColorSlots {
		return 0, "", fmt.Errorf("temporary rule %q: slot must be 1-%d", s, constants.TmpColorSlots)
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return 0, "", fmt.Errorf("temporary rule %q: empty filter", s)
	}
	return slot, filter, nil
}

// Run classifies every packet of opts.Capture with a loaded engine and
// prints the painted rows to out
func Run(ctx context.Context, e *colorfilter.Engine, opts Options, out io.Writer) (Stats, error) {
	stats := Stats{ByRule: make(map[string]int)}

	for _, t := range opts.TmpFilters {
		slot, filter, err := ParseTmpFilter(t)
		if err != nil {
			return stats, err
		}
		if err := e.SetTmp(slot, filter, false); err != nil {
			return stats, err
		}
	}

	reader, err := pcapio.Open(opts.Capture)
	if err != nil {
		return stats, err
	}
	defer reader.Close()

	var writer *pcapio.Writer
	if opts.WriteFile != "" {
		config := pcapio.DefaultConfig()
		config.FilePath = opts.WriteFile
		config.LinkType = reader.LinkType()
		if writer, err = pcapio.NewWriter(config); err != nil {
			return stats, err
		}
	}

	var renderOpts []render.Option
	switch {
	case opts.NoColor:
		renderOpts = append(renderOpts, render.WithNoColor())
	case opts.TrueColor:
		renderOpts = append(renderOpts, render.WithTrueColor())
	}
	r := render.NewRenderer(out, renderOpts...)

	logger.Info("Colorizing capture", "file", opts.Capture, "format", reader.Format(), "rules_file", e.ActivePath())
	if !opts.JSON {
		fmt.Fprintln(out, r.Header())
	}

	runErr := classifyAll(ctx, e, reader, writer, r, opts, out, &stats)

	if writer != nil {
		if err := writer.Close(); err != nil && runErr == nil {
			runErr = err
		}
		stats.Written, _ = writer.Stats()
	}
	if opts.Summary {
		if opts.JSON {
			if err := output.WriteJSON(out, stats); err != nil && runErr == nil {
				runErr = err
			}
		} else {
			printSummary(out, stats)
		}
	}
	return stats, runErr
}

func classifyAll(ctx context.Context, e *colorfilter.Engine, reader *pcapio.Reader, writer *pcapio.Writer, r *render.Renderer, opts Options, out io.Writer, stats *Stats) error {
	dp := dissect.NewPacket(0)
	for opts.Limit <= 0 || stats.Packets < opts.Limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		stats.Packets++

		var rule *colorfilter.ColorRule
		if e.Used() {
			dp.Reset(uint64(stats.Packets))
			e.Prime(dp)
			dissect.Dissect(pkt, dp)
			rule = e.Classify(dp)
		}

		if rule == nil {
			stats.Unmatched++
		} else {
			stats.ByRule[render.DisplayName(rule)]++
			if writer != nil && (opts.WriteRule == "" || opts.WriteRule == rule.Name) {
				if err := writer.WritePacket(pkt); err != nil {
					return err
				}
			}
		}

		summary := dissect.Summarize(pkt)
		if opts.JSON {
			if err := output.WriteJSON(out, packetRecord(stats.Packets, summary, rule)); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, r.Render(render.Row{
			Number:  uint64(stats.Packets),
			Summary: summary,
			Rule:    rule,
		}))
	}
	return nil
}

func packetRecord(n int, s dissect.Summary, rule *colorfilter.ColorRule) PacketRecord {
	rec := PacketRecord{
		Number:   n,
		Src:      s.Src,
		Dst:      s.Dst,
		SrcPort:  s.SrcPort,
		DstPort:  s.DstPort,
		Protocol: s.Protocol,
		Length:   s.Length,
		Info:     s.Info,
	}
	if rule != nil {
		rec.Rule = render.DisplayName(rule)
		rec.Foreground = rule.Foreground.HTML()
		rec.Background = rule.Background.HTML()
	}
	return rec
}

func printSummary(out io.Writer, stats Stats) {
	names := make([]string, 0, len(stats.ByRule))
	for name := range stats.ByRule {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if stats.ByRule[names[i]] != stats.ByRule[names[j]] {
			return stats.ByRule[names[i]] > stats.ByRule[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(out, "\n%d packets\n", stats.Packets)
	for _, name := range names {
		fmt.Fprintf(out, "  %6d  %s\n", stats.ByRule[name], name)
	}
	fmt.Fprintf(out, "  %6d  (no rule)\n", stats.Unmatched)
	if stats.Written > 0 {
		fmt.Fprintf(out, "%d packets written\n", stats.Written)
	}
}
