package expired

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tazhibayda/expired-service/internal/report"
)

func TestExpiredReport(t *testing.T) {
	f := newFixture(t, Options{})
	reports := report.NewRegistry()
	RegisterReport(reports, f.store)

	if diff := cmp.Diff([]string{ReportName}, reports.Global()); diff != "" {
		t.Fatalf("global reports (-want +got):\n%s", diff)
	}

	// Mark on day 0 (10 March).
	must(t, f.svc.Expire(f.ctx, f.U1, f.P2.ID))

	// Two more topics marked on 25 and 26 March.
	f.clock.advance(15 * 24 * time.Hour)
	ta := f.newTopic(t, f.Cat.ID, f.U2, "a")
	pa, err := f.store.ListPosts(f.ctx, ta.ID)
	must(t, err)
	must(t, f.svc.Expire(f.ctx, f.U2, pa[0].ID))
	f.clock.advance(24 * time.Hour)
	tb := f.newTopic(t, f.Cat.ID, f.U2, "b")
	pb, err := f.store.ListPosts(f.ctx, tb.ID)
	must(t, err)
	must(t, f.svc.Expire(f.ctx, f.U2, pb[0].ID))

	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	rep, err := reports.Run(f.ctx, ReportName, report.Params{Start: day(20), End: day(31)})
	must(t, err)
	wantData := []report.Point{{X: "2024-03-25", Y: 1}, {X: "2024-03-26", Y: 1}}
	if diff := cmp.Diff(wantData, rep.Data); diff != "" {
		t.Fatalf("data (-want +got):\n%s", diff)
	}
	if rep.Total != 2 || rep.Prev30Days != 1 {
		t.Fatalf("total = %d, prev30Days = %d; want 2, 1", rep.Total, rep.Prev30Days)
	}

	t.Run("empty range", func(t *testing.T) {
		rep, err := reports.Run(f.ctx, ReportName, report.Params{Start: day(11), End: day(24)})
		must(t, err)
		if len(rep.Data) != 0 || rep.Total != 0 {
			t.Fatalf("data = %v, total = %d; want empty", rep.Data, rep.Total)
		}
		if rep.Prev30Days != 1 {
			t.Fatalf("prev30Days = %d, want 1", rep.Prev30Days)
		}
	})

	t.Run("category filter", func(t *testing.T) {
		other := f.Disabled.ID
		rep, err := reports.Run(f.ctx, ReportName, report.Params{Start: day(1), End: day(31), CategoryID: &other})
		must(t, err)
		if rep.Total != 0 {
			t.Fatalf("total = %d, want 0", rep.Total)
		}
	})
}
