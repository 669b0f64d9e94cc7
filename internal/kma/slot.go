// Package kma holds the pure parts of the KMA village-forecast integration:
// broadcast slot selection, payload decoding and daily reduction.
package kma

import (
	"time"

	"github.com/kjstillabower/busan-travel-service/internal/models"
)

const (
	dateLayout = "20060102"
	timeLayout = "1504"

	// ForecastLag keeps requests away from a broadcast that may not be published yet.
	ForecastLag = 45 * time.Minute
	// ObservationLag is the same margin for the hourly live observation feed.
	ObservationLag = 40 * time.Minute
)

// forecastBaseTimes are the short-term forecast broadcasts, latest first.
var forecastBaseTimes = []string{"2300", "2000", "1700", "1400", "1100", "0800", "0500", "0200"}

// ForecastSlot returns the most recent short-term forecast broadcast available at now.
// Before 02:00 (after the lag) it is 23:00 of the previous day.
func ForecastSlot(now time.Time) models.Slot {
	t := now.Add(-ForecastLag)
	hhmm := t.Format(timeLayout)
	for _, bt := range forecastBaseTimes {
		if hhmm >= bt {
			return models.Slot{Date: t.Format(dateLayout), Time: bt}
		}
	}
	return models.Slot{Date: t.AddDate(0, 0, -1).Format(dateLayout), Time: "2300"}
}

// ObservationSlot returns the hourly live observation broadcast available at now.
func ObservationSlot(now time.Time) models.Slot {
	t := now.Add(-ObservationLag)
	return models.Slot{Date: t.Format(dateLayout), Time: t.Format("15") + "00"}
}

// Today is the forecast date string for now, in now's location.
func Today(now time.Time) string {
	return now.Format(dateLayout)
}
