package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// latestFinishedTradingDay returns the most recent trading day whose session
// has ended, using the Alpaca trading calendar API.
func (g *DailyBarGatherer) latestFinishedTradingDay() (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    g.cfg.APIKey,
		APISecret: g.cfg.APISecret,
		BaseURL:   g.cfg.BaseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now := time.Now().In(et)

	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}

	days := make([]string, len(calendar))
	for i, d := range calendar {
		days[i] = d.Date
	}
	return pickLatestFinished(days, now)
}

// pickLatestFinished chooses the newest calendar day that has finished
// settling: past days qualify outright, the current day only after 20:05
// local time when extended-hours data is complete. days are YYYY-MM-DD
// strings in ascending order.
func pickLatestFinished(days []string, now time.Time) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		if days[i] == today {
			if now.After(cutoff) {
				return time.Parse("2006-01-02", days[i])
			}
			continue
		}
		d, err := time.Parse("2006-01-02", days[i])
		if err != nil {
			continue
		}
		if d.Before(now) {
			return d, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
