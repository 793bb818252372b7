package expired

import (
	"context"
	"time"

	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/report"
)

const ReportName = "expired_topic"

// RegisterReport adds the daily expired-answer count to the dashboard.
func RegisterReport(r *report.Registry, store domain.FieldReportStore) {
	r.Add(ReportName, func(ctx context.Context, rep *report.Report) error {
		q := domain.FieldCountQuery{
			Name:       TopicFieldExpiredPostID,
			From:       rep.StartDate,
			To:         rep.EndDate,
			CategoryID: rep.CategoryID,
		}
		days, err := store.CountTopicFieldByDay(ctx, q)
		if err != nil {
			return err
		}
		for _, d := range days {
			rep.Data = append(rep.Data, report.Point{X: d.Date, Y: d.Count})
		}
		if rep.Total, err = store.CountTopicField(ctx, q); err != nil {
			return err
		}
		prev := q
		prev.From, prev.To = rep.StartDate.Add(-30*24*time.Hour), rep.StartDate
		rep.Prev30Days, err = store.CountTopicField(ctx, prev)
		return err
	})
	r.AddGlobal(ReportName)
}
