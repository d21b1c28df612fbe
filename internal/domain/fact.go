package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type FactKind string

const (
	FactNumber  FactKind = "number"
	FactString  FactKind = "string"
	FactBoolean FactKind = "boolean"
	FactDate    FactKind = "date"
)

func ValidFactKind(k string) bool {
	switch FactKind(k) {
	case FactNumber, FactString, FactBoolean, FactDate:
		return true
	}
	return false
}

// FactValue is a typed scalar. Kind selects which field carries the value.
type FactValue struct {
	Kind   FactKind  `json:"kind"`
	Number float64   `json:"number,omitempty"`
	Text   string    `json:"text,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Date   time.Time `json:"date,omitempty"`
}

func NumberValue(n float64) FactValue { return FactValue{Kind: FactNumber, Number: n} }
func StringValue(s string) FactValue  { return FactValue{Kind: FactString, Text: s} }
func BoolValue(b bool) FactValue      { return FactValue{Kind: FactBoolean, Bool: b} }
func DateValue(t time.Time) FactValue { return FactValue{Kind: FactDate, Date: t} }

// String renders the value in a stable, canonical form. Prompt construction
// and retrieval queries depend on this being deterministic.
func (v FactValue) String() string {
	switch v.Kind {
	case FactNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case FactBoolean:
		return strconv.FormatBool(v.Bool)
	case FactDate:
		return v.Date.Format("2006-01-02")
	default:
		return v.Text
	}
}

// AsNumber attempts numeric coercion for comparison purposes.
func (v FactValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case FactNumber:
		return v.Number, true
	case FactString:
		n, err := strconv.ParseFloat(v.Text, 64)
		return n, err == nil
	}
	return 0, false
}

// ParseFactValue builds a FactValue from its stored kind and text encoding.
func ParseFactValue(kind, raw string) (FactValue, error) {
	switch FactKind(kind) {
	case FactNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return FactValue{}, fmt.Errorf("parse number fact %q: %w", raw, err)
		}
		return NumberValue(n), nil
	case FactBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return FactValue{}, fmt.Errorf("parse boolean fact %q: %w", raw, err)
		}
		return BoolValue(b), nil
	case FactDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return FactValue{}, fmt.Errorf("parse date fact %q: %w", raw, err)
		}
		return DateValue(t), nil
	case FactString:
		return StringValue(raw), nil
	default:
		return FactValue{}, fmt.Errorf("unknown fact kind %q", kind)
	}
}

// Fact is an externally supplied case attribute. The engine only reads facts,
// never writes them.
type Fact struct {
	CaseID uuid.UUID `json:"case_id"`
	Key    string    `json:"key"`
	Value  FactValue `json:"value"`
	Source string    `json:"source,omitempty"`
}

// Facts is the immutable snapshot a single check evaluates against.
type Facts map[string]FactValue
