// Package thyroid holds the domain stages of the pipeline: the column
// schema of the thyroid dataset, the Cleaner and the Labeler.
package thyroid

import (
	"fmt"

	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// Column names of the thyroid dataset.
const (
	Age = "age"
	Sex = "sex"
	TSH = "TSH"
	T3  = "T3"
	TT4 = "TT4"
	T4U = "T4U"
	FTI = "FTI"
	TBG = "TBG"

	ReferralSource = "referral_source"
	PatientID      = "patient_id"

	// TargetColumn holds the diagnosis code, and after labeling the class name.
	TargetColumn = "target"
)

// ContinuousColumns are the lab measurements imputed with their mean.
var ContinuousColumns = []string{Age, TSH, T3, TT4, T4U, FTI, TBG}

// FlagColumns are the binary t/f columns.
var FlagColumns = []string{
	"on_thyroxine", "query_on_thyroxine", "on_antithyroid_meds", "sick",
	"pregnant", "thyroid_surgery", "I131_treatment", "query_hypothyroid",
	"query_hyperthyroid", "lithium", "goitre", "tumor", "hypopituitary",
	"psych", "TSH_measured", "T3_measured", "TT4_measured", "T4U_measured",
	"FTI_measured", "TBG_measured",
}

// IdentifierColumns carry no predictive signal and are removed by the Cleaner.
var IdentifierColumns = []string{ReferralSource, PatientID}

// ColumnSpec declares one column of the schema.
type ColumnSpec struct {
	Name     string
	Kind     dataset.Kind
	Optional bool
	// AnyKind は型を検査しない。読まずに捨てる列用
	AnyKind bool
}

// Schema is the declared column layout of the input table.
type Schema struct {
	Columns []ColumnSpec
	// AllowExtraNumeric lets numeric columns outside the schema pass through.
	AllowExtraNumeric bool
}

// DefaultSchema returns the layout of the thyroid dataset. TBG and the
// identifier columns are optional, and the identifiers may be of either kind
// (patient_id is an integer in the published file).
func DefaultSchema() Schema {
	s := Schema{AllowExtraNumeric: true}
	for _, name := range ContinuousColumns {
		s.Columns = append(s.Columns, ColumnSpec{Name: name, Kind: dataset.Numeric, Optional: name == TBG})
	}
	s.Columns = append(s.Columns, ColumnSpec{Name: Sex, Kind: dataset.Categorical})
	for _, name := range FlagColumns {
		s.Columns = append(s.Columns, ColumnSpec{Name: name, Kind: dataset.Categorical})
	}
	for _, name := range IdentifierColumns {
		s.Columns = append(s.Columns, ColumnSpec{Name: name, Kind: dataset.Categorical, Optional: true, AnyKind: true})
	}
	s.Columns = append(s.Columns, ColumnSpec{Name: TargetColumn, Kind: dataset.Categorical})
	return s
}

// Validate checks that every required column is present with its declared
// kind. A column made entirely of nulls matches either kind. Columns outside
// the schema are rejected unless they are numeric and AllowExtraNumeric is set.
func (s Schema) Validate(t *dataset.Table) error {
	declared := make(map[string]bool, len(s.Columns))
	for _, spec := range s.Columns {
		declared[spec.Name] = true
		c, err := t.Column(spec.Name)
		if err != nil {
			if spec.Optional {
				continue
			}
			return errors.NewSchemaError("validate", spec.Name, "required column is missing")
		}
		if !spec.AnyKind && c.Kind != spec.Kind && c.NullCount() != c.Len() {
			return errors.NewSchemaError("validate", spec.Name,
				fmt.Sprintf("expected %s column, got %s", spec.Kind, c.Kind))
		}
	}

	for _, c := range t.Columns() {
		if declared[c.Name] {
			continue
		}
		if c.Kind == dataset.Numeric && s.AllowExtraNumeric {
			continue
		}
		return errors.NewSchemaError("validate", c.Name, fmt.Sprintf("unexpected %s column", c.Kind))
	}
	return nil
}
