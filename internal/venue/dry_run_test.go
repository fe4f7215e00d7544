package venue

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"kraken-mm/internal/execution"
	"kraken-mm/pkg/types"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDryRunPlaceEmitsPlacedThenTerminal(t *testing.T) {
	t.Parallel()

	bus := execution.NewReportBroadcaster()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	v := NewDryRun(bus, newTestLogger())
	order := types.Order{OrderID: "o1", Side: types.Buy, Price: 100, Quantity: 1}

	if err := v.Execute(context.Background(), []types.OrderAction{types.PlaceAction(order)}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	first := <-sub.C()
	if first.Report.Kind != types.ReportPlaced {
		t.Fatalf("first report kind = %v, want ReportPlaced", first.Report.Kind)
	}

	second := <-sub.C()
	if second.Report.Kind != types.ReportAccepted && second.Report.Kind != types.ReportRejected {
		t.Fatalf("second report kind = %v, want Accepted or Rejected", second.Report.Kind)
	}
}

func TestDryRunCancelEmitsCancelThenCancelled(t *testing.T) {
	t.Parallel()

	bus := execution.NewReportBroadcaster()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	v := NewDryRun(bus, newTestLogger())
	action := types.CancelAction("o1", types.Instrument{}, types.Buy)

	if err := v.Execute(context.Background(), []types.OrderAction{action}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	first := <-sub.C()
	if first.Report.Kind != types.ReportCancel {
		t.Fatalf("first report kind = %v, want ReportCancel", first.Report.Kind)
	}
	second := <-sub.C()
	if second.Report.Kind != types.ReportCancelled {
		t.Fatalf("second report kind = %v, want ReportCancelled", second.Report.Kind)
	}
}

func TestDryRunCancelAllEmitsNoReport(t *testing.T) {
	t.Parallel()

	bus := execution.NewReportBroadcaster()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	v := NewDryRun(bus, newTestLogger())
	if err := v.Execute(context.Background(), []types.OrderAction{types.CancelAllAction()}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case msg := <-sub.C():
		t.Fatalf("expected no report for CancelAll in dry run, got %+v", msg)
	default:
	}
}

func TestDryRunRejectsRoughlyOneInTen(t *testing.T) {
	t.Parallel()

	bus := execution.NewReportBroadcaster()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	v := NewDryRun(bus, newTestLogger())

	var rejected, accepted int
	for i := 0; i < 500; i++ {
		order := types.Order{OrderID: "o", Side: types.Buy, Price: 100, Quantity: 1}
		_ = v.Execute(context.Background(), []types.OrderAction{types.PlaceAction(order)})
		<-sub.C() // Placed
		outcome := <-sub.C()
		switch outcome.Report.Kind {
		case types.ReportAccepted:
			accepted++
		case types.ReportRejected:
			rejected++
		}
	}

	if rejected == 0 {
		t.Error("expected at least one synthetic rejection over 500 placements")
	}
	if accepted == 0 {
		t.Error("expected at least one acceptance over 500 placements")
	}
}
