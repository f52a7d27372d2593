// internal/types/kpi_models.go
package types

import (
	"encoding/json"
	"sort"
	"strconv"
)

// --------------------------------------------
// KPI value kinds
// --------------------------------------------
type KPIKind int

const (
	KPIAbsent KPIKind = iota
	KPIString
	KPINumber
	KPIBool
)

func (k KPIKind) String() string {
	switch k {
	case KPIString:
		return "string"
	case KPINumber:
		return "number"
	case KPIBool:
		return "boolean"
	default:
		return "absent"
	}
}

// --------------------------------------------
// Single extracted value. The zero value is absent.
// --------------------------------------------
type KPIValue struct {
	Kind KPIKind
	Str  string
	Num  float64
	Bool bool
}

func Absent() KPIValue             { return KPIValue{} }
func StringKPI(s string) KPIValue  { return KPIValue{Kind: KPIString, Str: s} }
func NumberKPI(n float64) KPIValue { return KPIValue{Kind: KPINumber, Num: n} }
func BoolKPI(b bool) KPIValue      { return KPIValue{Kind: KPIBool, Bool: b} }
func (v KPIValue) IsAbsent() bool  { return v.Kind == KPIAbsent }

// Any returns the Go value, nil when absent.
func (v KPIValue) Any() any {
	switch v.Kind {
	case KPIString:
		return v.Str
	case KPINumber:
		return v.Num
	case KPIBool:
		return v.Bool
	default:
		return nil
	}
}

// Text renders the value for flat sinks; absent renders as "".
func (v KPIValue) Text() string {
	switch v.Kind {
	case KPIString:
		return v.Str
	case KPINumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KPIBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

func (v KPIValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *KPIValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = StringKPI(t)
	case float64:
		*v = NumberKPI(t)
	case bool:
		*v = BoolKPI(t)
	default:
		*v = Absent()
	}
	return nil
}

// --------------------------------------------
// KPISet maps KPI name to value. Every catalog KPI has an entry.
// --------------------------------------------
type KPISet map[string]KPIValue

// Names returns the KPI names in sorted order.
func (s KPISet) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AbsentNames lists KPIs that could not be extracted.
func (s KPISet) AbsentNames() []string {
	var out []string
	for _, k := range s.Names() {
		if s[k].IsAbsent() {
			out = append(out, k)
		}
	}
	return out
}

// --------------------------------------------
// KPI catalog entry
// --------------------------------------------
type KPIDefinition struct {
	Name        string
	Type        KPIKind
	Description string
}
