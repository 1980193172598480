package schema

import (
	"fmt"
	"slices"
	"strings"

	atlas "ariga.io/atlas/sql/schema"

	"github.com/syssam/relcomp/schema/field"
)

// FromAtlas builds a mapped table from an inspected atlas table. Columns
// are mapped to the fields whose name, or default column name, equals the
// column name; the remaining columns are unmapped.
//
//	t, err := schema.FromAtlas(inspected, person.Fields)
func FromAtlas(t *atlas.Table, fields []Field) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("schema: nil atlas table")
	}
	table := &Table{Name: t.Name}
	if t.Schema != nil {
		table.Schema = t.Schema.Name
	}
	for _, c := range t.Columns {
		col := Column{Name: c.Name, Field: -1}
		if c.Type != nil {
			col.Type, col.Size = atlasType(c.Type.Type)
			col.Nullable = c.Type.Null
		} else {
			col.Type = field.TypeOther
		}
		if i := slices.IndexFunc(fields, func(f Field) bool {
			return f.Name == c.Name || ColumnName(f.Name) == c.Name
		}); i >= 0 {
			col.Field = fields[i].Offset
		}
		table.Columns = append(table.Columns, col)
	}
	if t.PrimaryKey == nil || len(t.PrimaryKey.Parts) == 0 {
		return nil, fmt.Errorf("schema: table %q has no primary key", t.Name)
	}
	for _, p := range t.PrimaryKey.Parts {
		if p.C == nil {
			return nil, fmt.Errorf("schema: table %q has an expression in its primary key", t.Name)
		}
		i, ok := table.Column(p.C.Name)
		if !ok {
			return nil, fmt.Errorf("schema: primary key column %q not found in table %q", p.C.Name, t.Name)
		}
		table.Key = append(table.Key, i)
	}
	return table, nil
}

// atlasType returns the semantic type and size of an atlas column type.
func atlasType(t atlas.Type) (field.Type, int) {
	switch t := t.(type) {
	case *atlas.IntegerType:
		return integerType(t), 0
	case *atlas.StringType:
		return field.TypeString, t.Size
	case *atlas.BinaryType:
		if t.Size != nil {
			return field.TypeBytes, *t.Size
		}
		return field.TypeBytes, 0
	case *atlas.BoolType:
		return field.TypeBool, 0
	case *atlas.TimeType:
		return field.TypeTime, 0
	case *atlas.FloatType:
		if strings.EqualFold(t.T, "float") || strings.EqualFold(t.T, "real") {
			return field.TypeFloat32, 0
		}
		return field.TypeFloat64, 0
	case *atlas.DecimalType:
		return field.TypeFloat64, 0
	case *atlas.JSONType:
		return field.TypeJSON, 0
	case *atlas.UUIDType:
		return field.TypeUUID, 0
	case *atlas.EnumType:
		return field.TypeEnum, 0
	default:
		return field.TypeOther, 0
	}
}

func integerType(t *atlas.IntegerType) field.Type {
	signed := map[string]field.Type{
		"tinyint":   field.TypeInt8,
		"smallint":  field.TypeInt16,
		"mediumint": field.TypeInt32,
		"int":       field.TypeInt32,
		"integer":   field.TypeInt32,
		"bigint":    field.TypeInt64,
	}
	typ, ok := signed[strings.ToLower(t.T)]
	if !ok {
		typ = field.TypeInt64
	}
	if !t.Unsigned {
		return typ
	}
	switch typ {
	case field.TypeInt8:
		return field.TypeUint8
	case field.TypeInt16:
		return field.TypeUint16
	case field.TypeInt32:
		return field.TypeUint32
	default:
		return field.TypeUint64
	}
}
