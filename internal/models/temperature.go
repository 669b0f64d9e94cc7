package models

import "strconv"

// Absent is what the site shows in place of any temperature it could not obtain.
const Absent = "--"

// FormatTemperature renders v with one fractional digit, or Absent when v is nil.
func FormatTemperature(v *float64) string {
	if v == nil {
		return Absent
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

// Format converts a summary into its display form.
func (s DailySummary) Format() DailyTemperatures {
	return DailyTemperatures{
		Average: FormatTemperature(s.Average),
		Max:     FormatTemperature(s.Max),
		Min:     FormatTemperature(s.Min),
	}
}

// AbsentTemperatures is the all-absent display summary.
func AbsentTemperatures() DailyTemperatures {
	return DailyTemperatures{Average: Absent, Max: Absent, Min: Absent}
}
