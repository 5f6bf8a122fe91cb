package models

// ColumnKind distinguishes numeric measurements from categorical observations.
type ColumnKind string

const (
	ColumnNumeric     ColumnKind = "numeric"
	ColumnCategorical ColumnKind = "categorical"
	ColumnLabel       ColumnKind = "label"
)

// Column describes one attribute of the UCI CKD record
type Column struct {
	Name    string     `json:"name"`
	Kind    ColumnKind `json:"kind"`
	Title   string     `json:"title"`
	Unit    string     `json:"unit,omitempty"`
	Options []string   `json:"options,omitempty"` // categorical values, healthy first
}

// LabelColumn is the name of the target column in the raw dataset.
const LabelColumn = "class"

// EncodedLabelColumn is appended by the encode-only preprocessing step.
const EncodedLabelColumn = "class_encoded"

var (
	normalAbnormal = []string{"normal", "abnormal"}
	notPresent     = []string{"notpresent", "present"}
	noYes          = []string{"no", "yes"}
	goodPoor       = []string{"good", "poor"}
)

// Columns lists the 25 attributes of the CKD dataset in file order.
var Columns = []Column{
	{Name: "age", Kind: ColumnNumeric, Title: "Age", Unit: "years"},
	{Name: "bp", Kind: ColumnNumeric, Title: "Blood Pressure", Unit: "mm/Hg"},
	{Name: "sg", Kind: ColumnNumeric, Title: "Specific Gravity"},
	{Name: "al", Kind: ColumnNumeric, Title: "Albumin"},
	{Name: "su", Kind: ColumnNumeric, Title: "Sugar"},
	{Name: "rbc", Kind: ColumnCategorical, Title: "Red Blood Cells", Options: normalAbnormal},
	{Name: "pc", Kind: ColumnCategorical, Title: "Pus Cell", Options: normalAbnormal},
	{Name: "pcc", Kind: ColumnCategorical, Title: "Pus Cell Clumps", Options: notPresent},
	{Name: "ba", Kind: ColumnCategorical, Title: "Bacteria", Options: notPresent},
	{Name: "bgr", Kind: ColumnNumeric, Title: "Blood Glucose Random", Unit: "mgs/dl"},
	{Name: "bu", Kind: ColumnNumeric, Title: "Blood Urea", Unit: "mgs/dl"},
	{Name: "sc", Kind: ColumnNumeric, Title: "Serum Creatinine", Unit: "mg/dL"},
	{Name: "sod", Kind: ColumnNumeric, Title: "Sodium", Unit: "mEq/L"},
	{Name: "pot", Kind: ColumnNumeric, Title: "Potassium", Unit: "mEq/L"},
	{Name: "hemo", Kind: ColumnNumeric, Title: "Hemoglobin", Unit: "g/dL"},
	{Name: "pcv", Kind: ColumnNumeric, Title: "Packed Cell Volume", Unit: "%"},
	{Name: "wc", Kind: ColumnNumeric, Title: "White Blood Cell Count", Unit: "cells/cumm"},
	{Name: "rc", Kind: ColumnNumeric, Title: "Red Blood Cell Count", Unit: "millions/cmm"},
	{Name: "htn", Kind: ColumnCategorical, Title: "Hypertension", Options: noYes},
	{Name: "dm", Kind: ColumnCategorical, Title: "Diabetes Mellitus", Options: noYes},
	{Name: "cad", Kind: ColumnCategorical, Title: "Coronary Artery Disease", Options: noYes},
	{Name: "appet", Kind: ColumnCategorical, Title: "Appetite", Options: goodPoor},
	{Name: "pe", Kind: ColumnCategorical, Title: "Pedal Edema", Options: noYes},
	{Name: "ane", Kind: ColumnCategorical, Title: "Anemia", Options: noYes},
	{Name: LabelColumn, Kind: ColumnLabel, Title: "Class"},
}

// ColumnNames returns the canonical names of all 25 columns.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// FeatureNames returns the 24 feature names in the order the model expects.
func FeatureNames() []string {
	names := make([]string, 0, len(Columns)-1)
	for _, c := range Columns {
		if c.Kind != ColumnLabel {
			names = append(names, c.Name)
		}
	}
	return names
}

// LookupColumn returns the schema entry for name.
func LookupColumn(name string) (Column, bool) {
	for _, c := range Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ClinicalInput is the reduced eight-field screening panel.
type ClinicalInput struct {
	SerumCreatinine  float64 `json:"sc"`
	Hemoglobin       float64 `json:"hemo"`
	Albumin          float64 `json:"al"`
	SpecificGravity  float64 `json:"sg"`
	PackedCellVolume float64 `json:"pcv"`
	RedBloodCells    float64 `json:"rbcc"`
	Diabetes         bool    `json:"dm"`
	Hypertension     bool    `json:"htn"`
}

// ClinicalFields lists the request fields of the screening panel.
var ClinicalFields = []string{"sc", "hemo", "al", "sg", "pcv", "rbcc", "dm", "htn"}

// Record converts the panel into dataset column values. rbcc maps onto the
// dataset's rc column.
func (c *ClinicalInput) Record() map[string]string {
	return map[string]string{
		"sc":   formatFloat(c.SerumCreatinine),
		"hemo": formatFloat(c.Hemoglobin),
		"al":   formatFloat(c.Albumin),
		"sg":   formatFloat(c.SpecificGravity),
		"pcv":  formatFloat(c.PackedCellVolume),
		"rc":   formatFloat(c.RedBloodCells),
		"dm":   yesNo(c.Diabetes),
		"htn":  yesNo(c.Hypertension),
	}
}
