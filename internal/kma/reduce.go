package kma

import "github.com/kjstillabower/busan-travel-service/internal/models"

// SummarizeDay reduces forecast samples dated today into average, max and min.
// The average always comes from the hourly TMP series. TMX and TMN win over the
// hourly extremes when present. Without any hourly sample the whole summary is
// absent, even if TMX/TMN were published.
func SummarizeDay(samples []models.TemperatureSample, today string) models.DailySummary {
	var (
		hourly   []float64
		tmn, tmx *float64
	)
	for _, s := range samples {
		if s.Date != today {
			continue
		}
		v := s.Value
		switch s.Category {
		case models.CategoryHourlyTemp:
			hourly = append(hourly, v)
		case models.CategoryDailyMin:
			tmn = &v
		case models.CategoryDailyMax:
			tmx = &v
		}
	}
	if len(hourly) == 0 {
		return models.DailySummary{}
	}

	sum, lo, hi := 0.0, hourly[0], hourly[0]
	for _, v := range hourly {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	avg := sum / float64(len(hourly))
	if tmn == nil {
		tmn = &lo
	}
	if tmx == nil {
		tmx = &hi
	}
	return models.DailySummary{Average: &avg, Max: tmx, Min: tmn}
}

// CurrentTemperature returns the first T1H observation, or nil if there is none.
func CurrentTemperature(samples []models.TemperatureSample) *float64 {
	for _, s := range samples {
		if s.Category == models.CategoryCurrentTemp {
			v := s.Value
			return &v
		}
	}
	return nil
}
