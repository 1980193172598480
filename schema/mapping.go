package schema

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/syssam/relcomp/schema/field"
)

type (
	mappingFile struct {
		Types []typeSpec `yaml:"types"`
	}

	typeSpec struct {
		Name          string             `yaml:"name"`
		Inheritance   Inheritance        `yaml:"inheritance"`
		Discriminator *discriminatorSpec `yaml:"discriminator"`
		Fields        []fieldSpec        `yaml:"fields"`
		Tables        []tableSpec        `yaml:"tables"`
	}

	discriminatorSpec struct {
		Column string `yaml:"column"`
		Value  any    `yaml:"value"`
	}

	fieldSpec struct {
		Name string     `yaml:"name"`
		Type field.Type `yaml:"type"`
	}

	tableSpec struct {
		Schema  string       `yaml:"schema"`
		Name    string       `yaml:"name"`
		Key     []string     `yaml:"key"`
		Columns []columnSpec `yaml:"columns"`
	}

	columnSpec struct {
		Name     string     `yaml:"name"`
		Type     field.Type `yaml:"type"`
		Size     int        `yaml:"size"`
		Field    string     `yaml:"field"`
		Nullable bool       `yaml:"nullable"`
	}
)

// LoadMapping reads a YAML mapping file and returns the validated types.
//
//	types:
//	  - name: Person
//	    fields:
//	      - {name: id, type: int64}
//	      - {name: name, type: string}
//	    tables:
//	      - key: [id]
//
// Field offsets follow the declaration order. A table without a name is
// named after the type, and a table without columns stores every field in
// a column named after it.
func LoadMapping(r io.Reader) ([]*Type, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schema: read mapping: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping parses a YAML mapping document. See LoadMapping.
func ParseMapping(data []byte) ([]*Type, error) {
	var f mappingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("schema: parse mapping: %w", err)
	}
	types := make([]*Type, 0, len(f.Types))
	for _, spec := range f.Types {
		t, err := spec.build()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if err := Validate(types...).Err(); err != nil {
		return nil, err
	}
	return types, nil
}

func (s typeSpec) build() (*Type, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("schema: type without a name")
	}
	opts := []Option{WithInheritance(s.Inheritance)}
	if d := s.Discriminator; d != nil {
		opts = append(opts, WithDiscriminator(d.Column, d.Value))
	}
	fields := make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = Field{Name: f.Name, Type: f.Type, Offset: i}
	}
	opts = append(opts, WithFields(fields...))
	t := NewType(s.Name, opts...)
	for _, ts := range s.Tables {
		table, err := ts.build(t)
		if err != nil {
			return nil, err
		}
		t.Tables = append(t.Tables, table)
	}
	return t, nil
}

func (s tableSpec) build(t *Type) (*Table, error) {
	table := &Table{Schema: s.Schema, Name: s.Name}
	if table.Name == "" {
		table.Name = TableName(t.Name)
	}
	if len(s.Columns) == 0 {
		for _, f := range t.Fields {
			table.Columns = append(table.Columns, Column{Name: ColumnName(f.Name), Type: f.Type, Field: f.Offset})
		}
	}
	for _, cs := range s.Columns {
		c := Column{Name: cs.Name, Type: cs.Type, Size: cs.Size, Field: -1, Nullable: cs.Nullable}
		if cs.Field != "" {
			f, ok := t.FieldByName(cs.Field)
			if !ok {
				return nil, fmt.Errorf("schema: column %s.%s maps unknown field %q", table.Name, cs.Name, cs.Field)
			}
			c.Field = f.Offset
			if !c.Type.Valid() {
				c.Type = f.Type
			}
		}
		table.Columns = append(table.Columns, c)
	}
	for _, k := range s.Key {
		i, ok := table.Column(k)
		if !ok {
			return nil, fmt.Errorf("schema: key column %s.%s not found", table.Name, k)
		}
		table.Key = append(table.Key, i)
	}
	return table, nil
}
