package iodd

import "encoding/xml"

// The structs below mirror the parts of the IODD schema the parser reads.
// Attributes are kept as strings so that "absent" and "zero" stay distinct;
// conversion happens in the extractors. Tags carry no namespace, so the
// IODD default namespace and xsi-qualified attributes (xsi:type) match by
// local name.

type xmlDocument struct {
	XMLName                xml.Name         `xml:"IODevice"`
	DocumentInfo           xmlDocumentInfo  `xml:"DocumentInfo"`
	ProfileHeader          xmlProfileHeader `xml:"ProfileHeader"`
	ProfileBody            *xmlProfileBody  `xml:"ProfileBody"`
	ExternalTextCollection xmlExternalTexts `xml:"ExternalTextCollection"`
}

type xmlDocumentInfo struct {
	Version     string `xml:"version,attr"`
	ReleaseDate string `xml:"releaseDate,attr"`
	Copyright   string `xml:"copyright,attr"`
}

type xmlProfileHeader struct {
	ProfileIdentification string `xml:"ProfileIdentification"`
	ProfileRevision       string `xml:"ProfileRevision"`
}

type xmlProfileBody struct {
	DeviceIdentity *xmlDeviceIdentity `xml:"DeviceIdentity"`
	DeviceFunction xmlDeviceFunction  `xml:"DeviceFunction"`
}

type xmlTextRef struct {
	TextID string `xml:"textId,attr"`
}

type xmlDeviceIdentity struct {
	VendorID     string             `xml:"vendorId,attr"`
	VendorName   string             `xml:"vendorName,attr"`
	DeviceID     string             `xml:"deviceId,attr"`
	VendorText   xmlTextRef         `xml:"VendorText"`
	VendorURL    xmlTextRef         `xml:"VendorUrl"`
	VendorLogo   xmlFileRef         `xml:"VendorLogo"`
	DeviceName   xmlTextRef         `xml:"DeviceName"`
	DeviceFamily xmlTextRef         `xml:"DeviceFamily"`
	Variants     []xmlDeviceVariant `xml:"DeviceVariantCollection>DeviceVariant"`
}

type xmlFileRef struct {
	Name string `xml:"name,attr"`
}

type xmlDeviceVariant struct {
	ProductID    string     `xml:"productId,attr"`
	DeviceSymbol string     `xml:"deviceSymbol,attr"`
	DeviceIcon   string     `xml:"deviceIcon,attr"`
	Name         xmlTextRef `xml:"Name"`
	Description  xmlTextRef `xml:"Description"`
}

type xmlDeviceFunction struct {
	Datatypes     []xmlDatatype         `xml:"DatatypeCollection>Datatype"`
	Variables     xmlVariableCollection `xml:"VariableCollection"`
	ProcessData   []xmlProcessData      `xml:"ProcessDataCollection>ProcessData"`
	UserInterface xmlUserInterface      `xml:"UserInterface"`
}

// xmlDatatype covers Datatype, SimpleDatatype and the inline Datatype of a
// Variable or process-data port; which fields are set depends on Type.
type xmlDatatype struct {
	ID           string           `xml:"id,attr"`
	Type         string           `xml:"type,attr"`
	BitLength    string           `xml:"bitLength,attr"`
	FixedLength  string           `xml:"fixedLength,attr"`
	Encoding     string           `xml:"encoding,attr"`
	Count        string           `xml:"count,attr"`
	SingleValues []xmlSingleValue `xml:"SingleValue"`
	ValueRanges  []xmlValueRange  `xml:"ValueRange"`
	RecordItems  []xmlRecordItem  `xml:"RecordItem"`
	Simple       *xmlDatatype     `xml:"SimpleDatatype"`
	Ref          *xmlDatatypeRef  `xml:"DatatypeRef"`
}

type xmlSingleValue struct {
	Value string     `xml:"value,attr"`
	Name  xmlTextRef `xml:"Name"`
}

type xmlValueRange struct {
	Lower string     `xml:"lowerValue,attr"`
	Upper string     `xml:"upperValue,attr"`
	Name  xmlTextRef `xml:"Name"`
}

type xmlRecordItem struct {
	Subindex               string          `xml:"subindex,attr"`
	BitOffset              string          `xml:"bitOffset,attr"`
	AccessRightRestriction string          `xml:"accessRightRestriction,attr"`
	Simple                 *xmlDatatype    `xml:"SimpleDatatype"`
	Ref                    *xmlDatatypeRef `xml:"DatatypeRef"`
	Name                   xmlTextRef      `xml:"Name"`
	Description            xmlTextRef      `xml:"Description"`
}

type xmlDatatypeRef struct {
	DatatypeID string `xml:"datatypeId,attr"`
}

// xmlVariableCollection keeps Variable and StdVariableRef interleaved in
// document order.
type xmlVariableCollection struct {
	Entries []xmlVariableEntry `xml:",any"`
}

type xmlVariableEntry struct {
	XMLName                 xml.Name
	ID                      string                `xml:"id,attr"`
	Index                   string                `xml:"index,attr"`
	AccessRights            string                `xml:"accessRights,attr"`
	DefaultValue            string                `xml:"defaultValue,attr"`
	Dynamic                 string                `xml:"dynamic,attr"`
	ExcludedFromDataStorage string                `xml:"excludedFromDataStorage,attr"`
	FixedLengthRestriction  string                `xml:"fixedLengthRestriction,attr"`
	Datatype                *xmlDatatype          `xml:"Datatype"`
	DatatypeRef             *xmlDatatypeRef       `xml:"DatatypeRef"`
	RecordItemInfos         []xmlRecordItemInfo   `xml:"RecordItemInfo"`
	Name                    xmlTextRef            `xml:"Name"`
	Description             xmlTextRef            `xml:"Description"`
	StdSingleValueRefs      []xmlStdValueRef      `xml:"StdSingleValueRef"`
	StdValueRangeRef        *xmlStdRangeRef       `xml:"StdValueRangeRef"`
	StdRecordItemRefs       []xmlStdRecordItemRef `xml:"StdRecordItemRef"`
}

type xmlRecordItemInfo struct {
	Subindex                string `xml:"subindex,attr"`
	DefaultValue            string `xml:"defaultValue,attr"`
	ExcludedFromDataStorage string `xml:"excludedFromDataStorage,attr"`
}

type xmlStdValueRef struct {
	Value string `xml:"value,attr"`
}

type xmlStdRangeRef struct {
	Lower string `xml:"lowerValue,attr"`
	Upper string `xml:"upperValue,attr"`
}

type xmlStdRecordItemRef struct {
	Subindex           string           `xml:"subindex,attr"`
	DefaultValue       string           `xml:"defaultValue,attr"`
	StdSingleValueRefs []xmlStdValueRef `xml:"StdSingleValueRef"`
}

type xmlProcessData struct {
	ID        string              `xml:"id,attr"`
	Condition *xmlCondition       `xml:"Condition"`
	In        *xmlProcessDataPort `xml:"ProcessDataIn"`
	Out       *xmlProcessDataPort `xml:"ProcessDataOut"`
}

type xmlCondition struct {
	VariableID string `xml:"variableId,attr"`
	Subindex   string `xml:"subindex,attr"`
	Value      string `xml:"value,attr"`
}

type xmlProcessDataPort struct {
	ID          string          `xml:"id,attr"`
	BitLength   string          `xml:"bitLength,attr"`
	Name        xmlTextRef      `xml:"Name"`
	Datatype    *xmlDatatype    `xml:"Datatype"`
	DatatypeRef *xmlDatatypeRef `xml:"DatatypeRef"`
}

type xmlUserInterface struct {
	ProcessDataRefs []xmlProcessDataRef `xml:"ProcessDataRefCollection>ProcessDataRef"`
	Menus           []xmlMenu           `xml:"MenuCollection>Menu"`
	Observer        *xmlRoleMenuSet     `xml:"ObserverRoleMenuSet"`
	Maintenance     *xmlRoleMenuSet     `xml:"MaintenanceRoleMenuSet"`
	Specialist      *xmlRoleMenuSet     `xml:"SpecialistRoleMenuSet"`
}

type xmlProcessDataRef struct {
	ProcessDataID string                 `xml:"processDataId,attr"`
	Gradient      string                 `xml:"gradient,attr"`
	Offset        string                 `xml:"offset,attr"`
	UnitCode      string                 `xml:"unitCode,attr"`
	DisplayFormat string                 `xml:"displayFormat,attr"`
	ItemInfos     []xmlProcessDataItemUI `xml:"ProcessDataRecordItemInfo"`
}

type xmlProcessDataItemUI struct {
	Subindex      string `xml:"subindex,attr"`
	Gradient      string `xml:"gradient,attr"`
	Offset        string `xml:"offset,attr"`
	UnitCode      string `xml:"unitCode,attr"`
	DisplayFormat string `xml:"displayFormat,attr"`
}

// xmlMenu keeps its VariableRef, RecordItemRef and MenuRef children in
// document order.
type xmlMenu struct {
	ID      string         `xml:"id,attr"`
	Name    xmlTextRef     `xml:"Name"`
	Entries []xmlMenuEntry `xml:",any"`
}

type xmlMenuEntry struct {
	XMLName                xml.Name
	VariableID             string        `xml:"variableId,attr"`
	Subindex               string        `xml:"subindex,attr"`
	MenuID                 string        `xml:"menuId,attr"`
	AccessRightRestriction string        `xml:"accessRightRestriction,attr"`
	DisplayFormat          string        `xml:"displayFormat,attr"`
	UnitCode               string        `xml:"unitCode,attr"`
	Condition              *xmlCondition `xml:"Condition"`
	Buttons                []xmlButton   `xml:"Button"`
}

type xmlButton struct {
	ButtonValue string     `xml:"buttonValue,attr"`
	Description xmlTextRef `xml:"Description"`
}

type xmlRoleMenuSet struct {
	Identification *xmlMenuPointer `xml:"IdentificationMenu"`
	Parameter      *xmlMenuPointer `xml:"ParameterMenu"`
	Observation    *xmlMenuPointer `xml:"ObservationMenu"`
	Diagnosis      *xmlMenuPointer `xml:"DiagnosisMenu"`
}

type xmlMenuPointer struct {
	MenuID string `xml:"menuId,attr"`
}

type xmlExternalTexts struct {
	Primary   xmlLanguage   `xml:"PrimaryLanguage"`
	Languages []xmlLanguage `xml:"Language"`
}

type xmlLanguage struct {
	Lang  string    `xml:"lang,attr"`
	Texts []xmlText `xml:"Text"`
}

type xmlText struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}
