package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/storage"
)

// Show prints recent persisted records of the requested kind.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show records")
	}
	if closeStore != nil {
		defer closeStore()
	}

	switch opts.Kind {
	case "", "opportunities":
		return showOpportunities(ctx, store, opts.Limit)
	case "signals":
		return showSignals(ctx, store, opts.Limit)
	case "executions":
		return showExecutions(ctx, store, opts.Limit)
	default:
		return fmt.Errorf("unknown record kind %q (want opportunities, signals, or executions)", opts.Kind)
	}
}

func showOpportunities(ctx context.Context, store *storage.Store, limit int) error {
	records, err := store.ListRecentOpportunities(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPool\tDirection\tPool $\tRef $\tDiv%\tNet $\tROI%\tPassed")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			rec.DetectedAt.UTC().Format(time.RFC3339),
			rec.Pool,
			rec.Direction,
			rec.PoolPrice.StringFixed(2),
			rec.ReferencePrice.StringFixed(2),
			rec.DivergencePct.StringFixed(3),
			rec.NetProfitUSD.StringFixed(2),
			rec.ROIPct.StringFixed(3),
			rec.Passed,
		)
	}
	return writer.Flush()
}

func showSignals(ctx context.Context, store *storage.Store, limit int) error {
	records, err := store.ListRecentSignals(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no signals found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPool\tStrategy\tBid $\tAsk $\tSpread bps\tSize ETH\tRisk\tPriority")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.GeneratedAt.UTC().Format(time.RFC3339),
			rec.Pool,
			rec.Strategy,
			rec.TargetBid.StringFixed(2),
			rec.TargetAsk.StringFixed(2),
			rec.SpreadBps,
			rec.PositionSizeETH.String(),
			rec.OverallRisk.StringFixed(1),
			rec.Priority,
		)
	}
	return writer.Flush()
}

func showExecutions(ctx context.Context, store *storage.Store, limit int) error {
	records, err := store.ListRecentExecutions(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no executions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tOpportunity\tTrade\tStatus\tExpected $\tActual $\tSlip bps\tLatency ms\tReason")
	for _, rec := range records {
		reason := ""
		if rec.FailureReason != nil {
			reason = sanitizeInline(*rec.FailureReason)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			rec.SimulatedAt.UTC().Format(time.RFC3339),
			rec.OpportunityID,
			rec.TradeType,
			rec.Status,
			rec.ExpectedProfit.StringFixed(2),
			rec.ActualProfit.StringFixed(2),
			rec.SlippageBps,
			rec.LatencyMs,
			reason,
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
