package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerationKeepsOrder(t *testing.T) {
	e := Enumeration{{Value: "1", Name: "On"}, {Value: "0", Name: "Off"}, {Value: "10", Name: "Ten"}}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `{"1":"On","0":"Off","10":"Ten"}`, string(data))

	var back Enumeration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back)
}

func TestEnumerationNull(t *testing.T) {
	var e Enumeration
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	back := Enumeration{{Value: "x", Name: "y"}}
	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.Nil(t, back)
}

func TestEnumerationRejectsArray(t *testing.T) {
	var e Enumeration
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &e))
}

func TestEnumerationRestrict(t *testing.T) {
	e := Enumeration{{"0", "Off"}, {"1", "On"}, {"2", "Auto"}}
	assert.Equal(t, Enumeration{{"0", "Off"}, {"2", "Auto"}}, e.Restrict([]string{"2", "0"}))
	assert.Equal(t, e, e.Restrict(nil))

	name, ok := e.Lookup("1")
	assert.True(t, ok)
	assert.Equal(t, "On", name)
}

func TestMenuRoundTrip(t *testing.T) {
	m := Menu{
		ID:   "M_Param",
		Name: "Parameters",
		Items: []MenuItem{
			VariableRef{VariableID: "V_Setpoint", ItemAttributes: ItemAttributes{DisplayFormat: DisplayDecimal, UnitCode: "1010"}},
			RecordItemRef{VariableID: "V_Config", Subindex: 0},
			MenuRef{MenuID: "M_Sub", Condition: &Condition{VariableID: "V_Mode", Value: "1"}},
			Button{VariableID: "V_SystemCommand", Value: "130", ItemAttributes: ItemAttributes{AccessRightRestriction: AccessWriteOnly}},
		},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"record_item_ref","variable_id":"V_Config","subindex":0`)

	var back Menu
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestMenuUnmarshalUnknownKind(t *testing.T) {
	var m Menu
	err := json.Unmarshal([]byte(`{"id":"M","name":"n","items":[{"kind":"slider"}]}`), &m)
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in     string
		access AccessRights
		format DisplayFormat
	}{
		{"ro", AccessReadOnly, ""},
		{"rw", AccessReadWrite, ""},
		{"wo", AccessWriteOnly, ""},
		{"Dec", "", DisplayDecimal},
		{"Dec.2", "", DisplayDecimal},
		{"Hex", "", DisplayHex},
		{"Bin", "", DisplayBinary},
		{"bogus", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.access, ParseAccessRights(tt.in))
			assert.Equal(t, tt.format, ParseDisplayFormat(tt.in))
		})
	}
}

func TestCyclicTypeReferenceError(t *testing.T) {
	var err error = &CyclicTypeReferenceError{Cycle: []string{"A", "B", "A"}}
	wrapped := fmt.Errorf("failed to parse: %w", err)

	assert.True(t, errors.Is(wrapped, ErrCyclicTypeReference))
	var cyc *CyclicTypeReferenceError
	require.True(t, errors.As(wrapped, &cyc))
	assert.Equal(t, []string{"A", "B", "A"}, cyc.Cycle)
	assert.Contains(t, err.Error(), "A -> B -> A")
}

func TestReportFinalize(t *testing.T) {
	var r Report
	r.Warnf(CodeDanglingMenuRef, "/menus/M_B", "b")
	r.Warnf(CodeBitLengthMismatch, "/process_data/PD_In", "pd")
	r.Warnf(CodeDanglingMenuRef, "/menus/M_A", "a")
	r.Finalize()

	require.Len(t, r.Warnings, 3)
	assert.Equal(t, "/menus/M_A", r.Warnings[0].Path)
	assert.Equal(t, "/menus/M_B", r.Warnings[1].Path)
	assert.Equal(t, SevWarning, r.Warnings[2].Severity)
	assert.True(t, r.Valid)
	assert.NotNil(t, r.Errors)
}
