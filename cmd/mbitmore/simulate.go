package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/mbitmore/internal/board"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/service"
	"github.com/srg/mbitmore/internal/transport/console"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the service against a simulated central",
	Long: `Run the service with a simulated central connected and print every
notification it would receive.

The board turns and tilts a little on every tick, and the A button is
clicked periodically. Writes given with --write are delivered before the
first tick, as if the central had written them right after connecting.`,
	Example: `  mbitmore simulate --steps 20
  mbitmore simulate --policy always --interval 50ms
  mbitmore simulate --write command=014869 --write shared_data=0100020003000400`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

var (
	simulateSteps      int
	simulateInterval   time.Duration
	simulatePolicy     string
	simulateFormat     string
	simulateClickEvery int
	simulateWrites     []string
)

// buttonA is the micro:bit A button id in action events.
const buttonA byte = 1

func init() {
	simulateCmd.Flags().IntVarP(&simulateSteps, "steps", "n", 10, "Number of ticks to run")
	simulateCmd.Flags().DurationVarP(&simulateInterval, "interval", "i", 0, "Delay between ticks (0 runs as fast as possible)")
	simulateCmd.Flags().StringVarP(&simulatePolicy, "policy", "p", "changed", "Notify policy (changed, always)")
	simulateCmd.Flags().StringVarP(&simulateFormat, "format", "f", "table", "Summary format (table, json)")
	simulateCmd.Flags().IntVar(&simulateClickEvery, "click-every", 5, "Click button A every N ticks (0 disables)")
	simulateCmd.Flags().StringSliceVarP(&simulateWrites, "write", "w", nil, "Write <characteristic>=<hex> after connecting")
}

type simulatedWrite struct {
	index characteristic.Index
	data  []byte
}

func parseWrites(table *characteristic.Table, args []string) ([]simulatedWrite, error) {
	writes := make([]simulatedWrite, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid write %q: expected <characteristic>=<hex>", arg)
		}
		idx, found := characteristicByName(table, strings.TrimSpace(name))
		if !found {
			return nil, fmt.Errorf("%w: %s", service.ErrUnknownCharacteristic, name)
		}
		data, err := hex.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid hex in write %q: %w", arg, err)
		}
		writes = append(writes, simulatedWrite{index: idx, data: data})
	}
	return writes, nil
}

func characteristicByName(table *characteristic.Table, name string) (characteristic.Index, bool) {
	for _, d := range table.Descriptors() {
		if strings.EqualFold(d.Name, name) {
			return d.Index, true
		}
	}
	return 0, false
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(simulateFormat); err != nil {
		return err
	}
	if simulateSteps <= 0 {
		return fmt.Errorf("steps must be > 0, got %d", simulateSteps)
	}
	if simulateClickEvery < 0 {
		return fmt.Errorf("click-every must be >= 0, got %d", simulateClickEvery)
	}
	policy, err := service.ParseNotifyPolicy(simulatePolicy)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, logrus.WarnLevel)
	if err != nil {
		return err
	}

	table := characteristic.DefaultTable()
	writes, err := parseWrites(table, simulateWrites)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	b, err := board.New(board.DefaultOptions(), logger)
	if err != nil {
		return err
	}

	// JSON summaries stay machine readable: notifications go to stderr.
	notifyOut := cmd.OutOrStdout()
	if simulateFormat == "json" {
		notifyOut = cmd.ErrOrStderr()
	}
	transport := console.New(notifyOut, logger, colorEnabled(notifyOut))
	svc := service.New(table, b, logger, service.WithPolicy(policy), service.WithTransport(transport))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.OnConnect()
	for _, w := range writes {
		if err := svc.OnDataWritten(w.index, w.data); err != nil {
			return err
		}
	}

	for step := 0; step < simulateSteps; step++ {
		b.Animate(step)
		svc.Tick()
		if simulateClickEvery > 0 && (step+1)%simulateClickEvery == 0 {
			if err := b.Button(buttonA, board.ButtonClick); err != nil {
				return err
			}
		}
		if simulateInterval > 0 && step+1 < simulateSteps {
			if err := sleep(ctx, simulateInterval); err != nil {
				break
			}
		}
	}
	svc.OnDisconnect()

	summary := simulationSummary(svc.Stats(), b, transport.Count())
	if simulateFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	return writeSummary(cmd.OutOrStdout(), summary)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func simulationSummary(stats service.Stats, b *board.Board, printed uint64) *orderedmap.OrderedMap[string, any] {
	summary := orderedmap.New[string, any]()
	summary.Set("ticks", stats.Ticks)
	summary.Set("writes", stats.Writes)
	summary.Set("rejected_writes", stats.RejectedWrites)
	summary.Set("truncated_writes", stats.Truncated)
	summary.Set("notifications", stats.Notifications)
	summary.Set("failed_notifications", stats.FailedNotifies)
	summary.Set("printed", printed)

	commands := b.DrainJournal()
	summary.Set("commands", len(commands))
	summary.Set("display", b.DrainDisplay())

	shared := b.SharedSlots()
	summary.Set("shared_data", shared[:])
	return summary
}

func writeSummary(w io.Writer, summary *orderedmap.OrderedMap[string, any]) error {
	heading(w).Fprintln(w, "SUMMARY")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for pair := summary.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(tw, "%s\t%v\n", pair.Key, pair.Value)
	}
	return tw.Flush()
}
