package kma

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_Items(t *testing.T) {
	body := []byte(`{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL_SERVICE"},
		"body":{"dataType":"JSON","items":{"item":[
			{"fcstDate":"20261016","category":"TMP","fcstValue":"12"},
			{"fcstDate":"20261016","category":"SKY","fcstValue":"1"}
		]},"totalCount":2}}}`)
	p, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.ResultCode != "00" || p.ResultMsg != "NORMAL_SERVICE" {
		t.Errorf("header = (%q, %q), want (00, NORMAL_SERVICE)", p.ResultCode, p.ResultMsg)
	}
	if len(p.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(p.Items))
	}
}

func TestDecode_ShapeMismatchYieldsNoItems(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"no body", `{"response":{"header":{"resultCode":"03","resultMsg":"NO_DATA"}}}`},
		{"items is empty string", `{"response":{"body":{"items":""}}}`},
		{"item is object", `{"response":{"body":{"items":{"item":{"category":"TMP"}}}}}`},
		{"item is null", `{"response":{"body":{"items":{"item":null}}}}`},
		{"response is array", `{"response":[1,2,3]}`},
		{"top-level array", `[1,2,3]`},
		{"top-level string", `"hello"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("Decode() error = %v, want nil", err)
			}
			if len(p.Items) != 0 {
				t.Errorf("len(Items) = %d, want 0", len(p.Items))
			}
		})
	}
}

func TestDecode_NotJSON(t *testing.T) {
	bodies := []string{
		`<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg></cmmMsgHeader></OpenAPI_ServiceResponse>`,
		``,
		`{"response":`,
	}
	for _, b := range bodies {
		if _, err := Decode([]byte(b)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformedPayload", b, err)
		}
	}
}

func TestDecodeForecastItem(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		want   float64
	}{
		{"string value", `{"fcstDate":"20261016","category":"TMP","fcstValue":"12.5"}`, true, 12.5},
		{"numeric value", `{"fcstDate":"20261016","category":"TMX","fcstValue":20}`, true, 20},
		{"padded value", `{"fcstDate":"20261016","category":"TMN","fcstValue":" 5.0 "}`, true, 5},
		{"unparsable value", `{"fcstDate":"20261016","category":"TMP","fcstValue":"강수없음"}`, false, 0},
		{"null value", `{"fcstDate":"20261016","category":"TMP","fcstValue":null}`, false, 0},
		{"missing value", `{"fcstDate":"20261016","category":"TMP"}`, false, 0},
		{"nan value", `{"fcstDate":"20261016","category":"TMP","fcstValue":"NaN"}`, false, 0},
		{"other category", `{"fcstDate":"20261016","category":"POP","fcstValue":"30"}`, false, 0},
		{"not an object", `"TMP"`, false, 0},
		{"date wrong type", `{"fcstDate":20261016,"category":"TMP","fcstValue":"12"}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeForecastItem(json.RawMessage(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("DecodeForecastItem() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Value != tt.want {
				t.Errorf("Value = %v, want %v", got.Value, tt.want)
			}
		})
	}
}

func TestDecodeObservationItem(t *testing.T) {
	got, ok := DecodeObservationItem(json.RawMessage(`{"baseDate":"20261016","category":"T1H","obsrValue":"18.3"}`))
	if !ok || got.Category != "T1H" || got.Value != 18.3 {
		t.Errorf("DecodeObservationItem() = (%+v, %v), want T1H 18.3", got, ok)
	}
	if _, ok := DecodeObservationItem(json.RawMessage(`{"category":"T1H","obsrValue":""}`)); ok {
		t.Error("DecodeObservationItem() ok = true for empty value")
	}
}

func TestForecastSamples_SkipsBadRecords(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(`{"fcstDate":"20261016","category":"TMP","fcstValue":"10"}`),
		json.RawMessage(`{"fcstDate":"20261016","category":"TMP","fcstValue":"oops"}`),
		json.RawMessage(`42`),
		json.RawMessage(`{"fcstDate":"20261016","category":"TMP","fcstValue":"14"}`),
	}
	got := ForecastSamples(items)
	if len(got) != 2 || got[0].Value != 10 || got[1].Value != 14 {
		t.Errorf("ForecastSamples() = %+v, want values [10 14]", got)
	}
}
