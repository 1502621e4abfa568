// This file implements helpers for parsing query parameters and request
// bodies. Bodies may be JSON or form-encoded; numbers in JSON bodies are
// read as their text so amount coercion happens in one place.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"laundrytrack/internal/services"
)

// maxBodyBytes bounds JSON and form bodies.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
// Month is 0-based.
type MonthParams struct {
	Year  int
	Month int
}

// intParam reads an optional integer parameter. A present but unparsable
// value is a bad request.
func intParam(values url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(values.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return n, nil
}

// ParseMonthParams extracts year and 0-based month, defaulting to now.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	year, err := intParam(query, "year", now.Year())
	if err != nil {
		return MonthParams{}, err
	}
	month, err := intParam(query, "month", int(now.Month())-1)
	if err != nil {
		return MonthParams{}, err
	}
	return MonthParams{Year: year, Month: month}, nil
}

// RequestBodyParser handles JSON and form-encoded request bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", ErrBadRequest, p.err)
		return p.err
	}
	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(trimmed, "{") || strings.Contains(p.contentType, "json") {
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: invalid JSON body", ErrBadRequest)
			return p.err
		}
		return nil
	}

	var err error
	p.formData, err = url.ParseQuery(trimmed)
	if err != nil {
		p.err = fmt.Errorf("%w: invalid form body", ErrBadRequest)
	}
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Int reads an integer field. Missing means 0; anything else unparsable is
// a bad request.
func (p *RequestBodyParser) Int(key string) (int, error) {
	v := p.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return n, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func (p *RequestBodyParser) period() (year, month, week int, err error) {
	if year, err = p.Int("year"); err != nil {
		return
	}
	if month, err = p.Int("month"); err != nil {
		return
	}
	week, err = p.Int("week")
	return
}

// ReportInput builds a report form from the body.
func (p *RequestBodyParser) ReportInput() (services.ReportInput, error) {
	if err := p.Parse(); err != nil {
		return services.ReportInput{}, err
	}
	year, month, week, err := p.period()
	if err != nil {
		return services.ReportInput{}, err
	}
	return services.ReportInput{
		Year:           year,
		Month:          month,
		Week:           week,
		Washer1:        p.Get("washer1"),
		Washer2:        p.Get("washer2"),
		Dryer1:         p.Get("dryer1"),
		Dryer2:         p.Get("dryer2"),
		Online:         p.Get("online"),
		Offline:        p.Get("offline"),
		MoneyCollected: p.Get("moneyCollected"),
		Notes:          p.Get("notes"),
	}, nil
}

// TransactionInput builds a transaction form from the body.
func (p *RequestBodyParser) TransactionInput() (services.TransactionInput, error) {
	if err := p.Parse(); err != nil {
		return services.TransactionInput{}, err
	}
	year, month, week, err := p.period()
	if err != nil {
		return services.TransactionInput{}, err
	}
	return services.TransactionInput{
		Year:        year,
		Month:       month,
		Week:        week,
		Date:        p.Get("date"),
		Type:        p.Get("type"),
		Amount:      p.Get("amount"),
		Description: p.Get("description"),
	}, nil
}

// sanitizeInput drops control characters other than tab, newline and
// carriage return, then trims surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
