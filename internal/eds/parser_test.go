package eds

import (
	"os"
	"testing"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/processdata"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T) *types.ParseResult {
	t.Helper()
	data, err := os.ReadFile("testdata/Acme-FS200.eds")
	require.NoError(t, err)

	res, err := NewParser(nil).Parse(data, WithSourceName("Acme-FS200.eds"))
	require.NoError(t, err)
	return res
}

func codes(issues []types.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestParseIdentity(t *testing.T) {
	res := parseFixture(t)
	d := res.Device

	assert.Equal(t, types.FormatEDS, d.Format)
	assert.Equal(t, "Acme-FS200.eds", d.SourceName)
	assert.Equal(t, uint32(1234), d.Identity.VendorID)
	assert.Equal(t, "Acme Automation", d.Identity.VendorName)
	assert.Equal(t, uint32(77), d.Identity.DeviceID)
	assert.Equal(t, "Acme FS-200", d.Identity.DeviceName)
	assert.Equal(t, "Generic Device", d.Identity.DeviceFamily)
	assert.Equal(t, "2.3", d.Identity.Revision)
	assert.Equal(t, "1.2", d.Identity.DocumentVer)
	assert.Equal(t, "03-01-2024", d.Identity.ReleaseDate)
	require.Len(t, d.Identity.ProductVariant, 1)
	assert.Equal(t, "FS-200-EIP", d.Identity.ProductVariant[0].ProductID)
}

func TestParseParameters(t *testing.T) {
	d := parseFixture(t).Device
	require.Len(t, d.Parameters, 6)

	ids := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Param1", "Param2", "Param3", "Param4", "Param5", "Param6"}, ids)

	status := d.Parameters[0]
	assert.Equal(t, "Status", status.Name)
	assert.Equal(t, types.AccessReadOnly, status.AccessRights)
	assert.Equal(t, "CIP_UINT", status.DatatypeRef)
	assert.Equal(t, types.KindUnsigned, status.Kind)
	assert.Equal(t, uint32(16), status.BitLength)
	require.NotNil(t, status.Index)
	assert.Equal(t, uint32(1), *status.Index)

	temp := d.Parameters[1]
	assert.Equal(t, "Process temperature", temp.Description)
	assert.Equal(t, "degC", temp.Unit)
	assert.Equal(t, "-400", temp.MinValue)
	assert.Equal(t, "1500", temp.MaxValue)
	assert.Equal(t, "200", temp.DefaultValue)
	assert.Equal(t, types.AccessReadOnly, temp.AccessRights)
	assert.Equal(t, types.KindInteger, temp.Kind)

	mode := d.Parameters[2]
	assert.Equal(t, types.KindEnumerated, mode.Kind)
	assert.Equal(t, types.AccessReadWrite, mode.AccessRights)
	assert.Equal(t, types.Enumeration{{Value: "0", Name: "Off"}, {Value: "1", Name: "On"}}, mode.EnumerationValues)

	assert.Equal(t, types.KindUnknown, d.Parameters[4].Kind)
	assert.Empty(t, d.Parameters[4].DatatypeRef)

	tag := d.Parameters[5]
	assert.Equal(t, types.KindString, tag.Kind)
	assert.Equal(t, uint32(256), tag.BitLength)
	assert.Equal(t, "none", tag.DefaultValue)
}

func TestParseDatatypesInFirstUseOrder(t *testing.T) {
	d := parseFixture(t).Device

	ids := make([]string, 0, len(d.Datatypes))
	for _, dt := range d.Datatypes {
		ids = append(ids, dt.ID)
	}
	assert.Equal(t, []string{"CIP_UINT", "CIP_INT", "CIP_USINT", "CIP_BOOL", "CIP_SHORT_STRING"}, ids)
	assert.Equal(t, uint32(0), d.Datatypes[4].BitLength)
}

func TestParseAssemblies(t *testing.T) {
	d := parseFixture(t).Device
	require.Len(t, d.ProcessData, 2, "the unconnected config assembly is not a process-data block")

	in := d.ProcessData[0]
	assert.Equal(t, "Assem100", in.ID)
	assert.Equal(t, types.DirectionInput, in.Direction)
	assert.Equal(t, uint32(32), in.TotalBitLength)
	require.Len(t, in.Items, 3)
	assert.Equal(t, "Temperature", in.Items[0].Name)
	assert.Equal(t, uint32(0), in.Items[0].BitOffset)
	require.NotNil(t, in.Items[0].Gradient)
	assert.InDelta(t, 0.1, *in.Items[0].Gradient, 1e-9)
	assert.Nil(t, in.Items[0].Offset)
	assert.Equal(t, "Mode", in.Items[1].Name)
	assert.Equal(t, uint32(16), in.Items[1].BitOffset)
	assert.Equal(t, "Padding", in.Items[2].Name)
	assert.Equal(t, uint32(24), in.Items[2].BitOffset)

	out := d.ProcessData[1]
	assert.Equal(t, "Assem150", out.ID)
	assert.Equal(t, types.DirectionOutput, out.Direction)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Param77", out.Items[1].Name)
	assert.Equal(t, types.KindUnknown, out.Items[1].Kind)

	for _, b := range d.ProcessData {
		var sum uint32
		for _, it := range b.Items {
			sum += it.BitLength
		}
		assert.Equal(t, b.TotalBitLength, sum, b.ID)
		assert.Empty(t, processdata.Overlaps(b.Items), b.ID)
	}
}

func TestDecodeAssembly(t *testing.T) {
	d := parseFixture(t).Device
	block, ok := d.ProcessDataBlock("Assem100", types.DirectionInput)
	require.True(t, ok)

	res, err := processdata.Decode(block, []byte{0x00, 0x01, 0x00, 0xC8})
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Values[0].Value)
	require.NotNil(t, res.Values[0].Scaled)
	assert.InDelta(t, 20.0, *res.Values[0].Scaled, 1e-9)
	assert.Equal(t, "On", res.Values[1].Label)
}

func TestParseGroups(t *testing.T) {
	d := parseFixture(t).Device
	require.Len(t, d.Menus, 3)

	setup := d.Menus[0]
	assert.Equal(t, "Group1", setup.ID)
	assert.Equal(t, "Setup", setup.Name)
	require.Len(t, setup.Items, 2)
	assert.Equal(t, types.VariableRef{VariableID: "Param3"}, setup.Items[0])
	assert.Equal(t, types.VariableRef{VariableID: "Param4"}, setup.Items[1])

	diag := d.Menus[2]
	require.Len(t, diag.Items, 1, "unknown members stay as references")
	assert.Equal(t, types.VariableRef{VariableID: "Param42"}, diag.Items[0])
	assert.True(t, d.RoleMenuSets.IsZero())
}

func TestParseEmbeddedIcon(t *testing.T) {
	d := parseFixture(t).Device
	require.Len(t, d.Assets, 1)

	icon := d.Assets[0]
	assert.Equal(t, "dev.png", icon.ID)
	assert.Equal(t, types.AssetDeviceIcon, icon.Role)
	assert.Equal(t, "image/png", icon.ContentType)
	assert.NotEmpty(t, icon.Data)
}

func TestParseWarnings(t *testing.T) {
	res := parseFixture(t)
	assert.Equal(t, []string{
		types.CodeEDSUnknownParamRef, // /Assembly/Assem150
		types.CodeEDSUnknownParamRef, // /Groups/Group3
		types.CodeEDSUnknownType,     // /Params/Param5
	}, codes(res.Warnings))
}

func TestParseDeterministic(t *testing.T) {
	a := parseFixture(t)
	b := parseFixture(t)
	assert.Equal(t, a, b)
}

func TestParseFatal(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"no device section", "[File]\nRevision = 1.0;\n", types.ErrMissingIdentity},
		{"bad vendor code", "[Device]\nVendCode = abc;\nProdCode = 1;\n", types.ErrMissingIdentity},
		{"unterminated string", "[Device]\nVendCode = 1;\nProdName = \"oops;\n", types.ErrMalformedDocument},
		{"unterminated header", "[Device\nVendCode = 1;\n", types.ErrMalformedDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewParser(nil).Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestParseMinimalWithoutConnections(t *testing.T) {
	doc := `[Device]
VendCode = 0x10; ProdCode = 5; ProdName = "Mini";
[Params]
Param1 = 0,,,0,0xC6,1,"A","","",0,255,0;
[Assembly]
Assem1 = "Data", "", 1, 0,,, 8, Param1;
`
	res, err := NewParser(nil).Parse([]byte(doc))
	require.NoError(t, err)
	d := res.Device

	assert.Equal(t, uint32(16), d.Identity.VendorID)
	require.Len(t, d.ProcessData, 1)
	assert.Equal(t, types.DirectionInput, d.ProcessData[0].Direction)
	assert.Empty(t, res.Warnings)
	assert.NotNil(t, d.Menus)
	assert.NotNil(t, d.Assets)
}

func TestParseLenientEntries(t *testing.T) {
	doc := `[Device]
VendCode = 1;
ProdCode = 2;
ProdName = "Unterminated"
[Params]
Param1 = 0,,,0,0xC6;
NoEquals;
`
	res, err := NewParser(nil).Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "Unterminated", res.Device.Identity.DeviceName)
	assert.Empty(t, res.Device.Parameters)
	assert.Equal(t, []string{
		types.CodeEDSMalformedEntry, // /Params/Param1: too few fields
		types.CodeEDSMalformedEntry, // /line/4: no ';'
		types.CodeEDSMalformedEntry, // /line/7: no '='
	}, codes(res.Warnings))
}

func TestParseOutOfRangeSizes(t *testing.T) {
	doc := `[Device]
VendCode = 1; ProdCode = 2; ProdName = "Big";
[Params]
Param1 = 0,,,0,0xC6,4294967296,"A","","",0,255,0;
[Assembly]
Assem1 = "Data", "", 4294967295, 0,,, 99999999999, Param1, 8, Param1;
`
	res, err := NewParser(nil).Parse([]byte(doc))
	require.NoError(t, err)
	d := res.Device

	require.Len(t, d.Parameters, 1)
	assert.Equal(t, uint32(8), d.Parameters[0].BitLength)

	require.Len(t, d.ProcessData, 1)
	blk := d.ProcessData[0]
	require.Len(t, blk.Items, 1)
	assert.Equal(t, uint32(0), blk.Items[0].BitOffset)
	assert.Equal(t, uint32(8), blk.TotalBitLength)

	assert.ElementsMatch(t, []string{types.CodeEDSMalformedEntry, types.CodeEDSMalformedEntry}, codes(res.Warnings))
}
