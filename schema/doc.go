// Package schema describes how persistent types are stored in tables.
//
// A Type lists its fields and the tables storing them, ordered from the
// root of the inheritance hierarchy to the leaf:
//
//	person := schema.NewType("Person",
//	    schema.WithFields(
//	        schema.Field{Name: "id", Type: field.TypeInt64, Offset: 0},
//	        schema.Field{Name: "name", Type: field.TypeString, Offset: 1},
//	    ),
//	    schema.WithTables(&schema.Table{
//	        Name: schema.TableName("Person"), // people
//	        Columns: []schema.Column{
//	            {Name: "id", Type: field.TypeInt64, Field: 0},
//	            {Name: "name", Type: field.TypeString, Size: 255, Field: 1},
//	        },
//	        Key: []int{0},
//	    }),
//	)
//
// Mappings can also be read from YAML with LoadMapping or built from an
// inspected database table with FromAtlas. Validate reports mappings the
// persist builder cannot compile.
package schema
