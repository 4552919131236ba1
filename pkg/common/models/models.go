package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // timeline.loaded, timeline.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
)

// Value is a coerced cell. Numeric columns may legitimately hold free text,
// so a Value is either null, a number or the original trimmed text.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

func Null() Value { return Value{} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Text(s string) Value { return Value{kind: KindText, text: s} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// IsInteger reports whether the value is a number with no fractional part.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && v.num == math.Trunc(v.num)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(t)
	case string:
		*v = Text(t)
	default:
		*v = Text(string(data))
	}
	return nil
}

// TriState is a {0, 1, null} flag; the zero value is Unknown.
type TriState int8

const (
	Unknown TriState = iota
	No
	Yes
)

func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("1"), nil
	case No:
		return []byte("0"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *TriState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "1", "true":
		*t = Yes
	case "0", "false":
		*t = No
	default:
		*t = Unknown
	}
	return nil
}

type Note struct {
	DateOffset   float64 `json:"date"`
	RawText      string  `json:"text"`
	FriendlyText string  `json:"pretty"`
}

func (n Note) Offset() (float64, bool) { return n.DateOffset, true }

type LabObservation struct {
	DateOffset float64             `json:"date"`
	Fields     map[string]Value    `json:"fields"`
	Symptoms   map[string]TriState `json:"symptoms"`
}

func (l LabObservation) Offset() (float64, bool) { return l.DateOffset, true }

type MedicationEvent struct {
	DateOffset  *float64 `json:"date"`
	Medications []string `json:"meds"`
}

func (m MedicationEvent) Offset() (float64, bool) {
	if m.DateOffset == nil {
		return 0, false
	}
	return *m.DateOffset, true
}

type Demographics struct {
	Age Value  `json:"age"`
	Sex string `json:"sex"`
	BMI Value  `json:"bmi"`
}

// IsPediatric reports a known numeric age under 18.
func (d Demographics) IsPediatric() bool {
	age, ok := d.Age.Float()
	return ok && age < 18
}

type PatientTimeline struct {
	PatientID     string            `json:"patient_id"`
	MinDate       float64           `json:"min_date"`
	MaxDate       float64           `json:"max_date"`
	Notes         []Note            `json:"notes"`
	Labs          []LabObservation  `json:"labs"`
	Medications   []MedicationEvent `json:"medications"`
	Demographics  Demographics      `json:"demographics"`
	BiologicDates []float64         `json:"biologic_dates"`
}

type PatientSummary struct {
	PatientID   string  `json:"patient_id"`
	NoteCount   int     `json:"note_count"`
	LabCount    int     `json:"lab_count"`
	MinDate     float64 `json:"min_date"`
	MaxDate     float64 `json:"max_date"`
	HasBiologic bool    `json:"has_biologic"`
}
