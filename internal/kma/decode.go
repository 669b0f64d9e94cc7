package kma

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/busan-travel-service/internal/models"
)

// ErrMalformedPayload is returned when the response body is not JSON at all.
// KMA answers some key errors with an XML body and HTTP 200.
var ErrMalformedPayload = errors.New("malformed payload")

var itemsPath = []string{"response", "body", "items", "item"}

// Payload is the part of a KMA response the service reads.
type Payload struct {
	ResultCode string
	ResultMsg  string
	Items      []json.RawMessage
}

// Decode reads a KMA response body. Any level of response.body.items.item that is
// missing or has the wrong shape yields zero items rather than an error; only a
// body that is not valid JSON fails.
func Decode(body []byte) (Payload, error) {
	if !json.Valid(body) {
		return Payload{}, ErrMalformedPayload
	}
	var p Payload

	var head struct {
		Response struct {
			Header struct {
				ResultCode string `json:"resultCode"`
				ResultMsg  string `json:"resultMsg"`
			} `json:"header"`
		} `json:"response"`
	}
	if json.Unmarshal(body, &head) == nil {
		p.ResultCode = head.Response.Header.ResultCode
		p.ResultMsg = head.Response.Header.ResultMsg
	}

	node := json.RawMessage(body)
	for _, key := range itemsPath {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(node, &obj); err != nil {
			return p, nil
		}
		next, ok := obj[key]
		if !ok {
			return p, nil
		}
		node = next
	}
	var items []json.RawMessage
	if err := json.Unmarshal(node, &items); err != nil {
		return p, nil
	}
	p.Items = items
	return p, nil
}

// flexValue accepts both "12.5" and 12.5; KMA documents strings but numbers appear.
type flexValue string

func (v *flexValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = flexValue(s)
		return nil
	}
	*v = flexValue(b)
	return nil
}

func (v flexValue) float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

type forecastItem struct {
	FcstDate  string    `json:"fcstDate"`
	Category  string    `json:"category"`
	FcstValue flexValue `json:"fcstValue"`
}

type observationItem struct {
	Category  string    `json:"category"`
	ObsrValue flexValue `json:"obsrValue"`
}

// DecodeForecastItem decodes one forecast record. ok is false when the record is
// not a temperature category or its value does not parse; callers skip it.
func DecodeForecastItem(raw json.RawMessage) (models.TemperatureSample, bool) {
	var it forecastItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return models.TemperatureSample{}, false
	}
	switch it.Category {
	case models.CategoryHourlyTemp, models.CategoryDailyMin, models.CategoryDailyMax:
	default:
		return models.TemperatureSample{}, false
	}
	v, ok := it.FcstValue.float()
	if !ok {
		return models.TemperatureSample{}, false
	}
	return models.TemperatureSample{Date: it.FcstDate, Category: it.Category, Value: v}, true
}

// DecodeObservationItem decodes one live observation record; ok is false when
// the value does not parse.
func DecodeObservationItem(raw json.RawMessage) (models.TemperatureSample, bool) {
	var it observationItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return models.TemperatureSample{}, false
	}
	v, ok := it.ObsrValue.float()
	if !ok {
		return models.TemperatureSample{}, false
	}
	return models.TemperatureSample{Category: it.Category, Value: v}, true
}

// ForecastSamples decodes every forecast record, dropping the ones that skip.
func ForecastSamples(items []json.RawMessage) []models.TemperatureSample {
	out := make([]models.TemperatureSample, 0, len(items))
	for _, raw := range items {
		if s, ok := DecodeForecastItem(raw); ok {
			out = append(out, s)
		}
	}
	return out
}

// ObservationSamples decodes every observation record, dropping the ones that skip.
func ObservationSamples(items []json.RawMessage) []models.TemperatureSample {
	out := make([]models.TemperatureSample, 0, len(items))
	for _, raw := range items {
		if s, ok := DecodeObservationItem(raw); ok {
			out = append(out, s)
		}
	}
	return out
}
