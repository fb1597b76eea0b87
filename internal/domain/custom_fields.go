package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FieldKind names the payload type of a custom field
type FieldKind string

const (
	FieldKindString FieldKind = "string"
	FieldKindNumber FieldKind = "number"
	FieldKindBool   FieldKind = "bool"
	FieldKindDate   FieldKind = "date"
)

const maxFieldKeyLength = 64

// FieldValue is a typed custom field value. Only the member matching Kind is meaningful.
type FieldValue struct {
	Kind   FieldKind
	Text   string
	Number decimal.Decimal
	Bool   bool
	Date   time.Time
}

func StringField(s string) FieldValue { return FieldValue{Kind: FieldKindString, Text: s} }
func NumberField(n decimal.Decimal) FieldValue { return FieldValue{Kind: FieldKindNumber, Number: n} }
func BoolField(b bool) FieldValue { return FieldValue{Kind: FieldKindBool, Bool: b} }
func DateField(t time.Time) FieldValue { return FieldValue{Kind: FieldKindDate, Date: t} }

type fieldValueJSON struct {
	Kind  FieldKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case FieldKindString:
		payload = v.Text
	case FieldKindNumber:
		payload = v.Number
	case FieldKindBool:
		payload = v.Bool
	case FieldKindDate:
		payload = v.Date.Format(time.DateOnly)
	default:
		return nil, fmt.Errorf("unknown custom field kind %q", v.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueJSON{Kind: v.Kind, Value: raw})
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var in fieldValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := FieldValue{Kind: in.Kind}
	var err error
	switch in.Kind {
	case FieldKindString:
		err = json.Unmarshal(in.Value, &out.Text)
	case FieldKindNumber:
		err = json.Unmarshal(in.Value, &out.Number)
	case FieldKindBool:
		err = json.Unmarshal(in.Value, &out.Bool)
	case FieldKindDate:
		var s string
		if err = json.Unmarshal(in.Value, &s); err == nil {
			out.Date, err = time.Parse(time.DateOnly, s)
		}
	default:
		return fmt.Errorf("unknown custom field kind %q", in.Kind)
	}
	if err != nil {
		return fmt.Errorf("custom field of kind %s: %w", in.Kind, err)
	}

	*v = out
	return nil
}

// CustomFields is the typed extension map attached to a loan.
type CustomFields map[string]FieldValue

// Validate rejects empty or overlong keys and unknown kinds.
func (c CustomFields) Validate() error {
	for key, value := range c {
		if key == "" || len(key) > maxFieldKeyLength {
			return fmt.Errorf("custom field key %q must be 1-%d characters", key, maxFieldKeyLength)
		}
		switch value.Kind {
		case FieldKindString, FieldKindNumber, FieldKindBool, FieldKindDate:
		default:
			return fmt.Errorf("custom field %q has unknown kind %q", key, value.Kind)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (c CustomFields) Clone() CustomFields {
	if c == nil {
		return nil
	}
	out := make(CustomFields, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Value stores the map as JSON text.
func (c CustomFields) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the JSON text written by Value.
func (c *CustomFields) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into CustomFields", src)
	}

	var out CustomFields
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		out = nil
	}
	*c = out
	return nil
}
