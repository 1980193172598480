package schema

import "github.com/go-openapi/inflect"

// TableName returns the default table name of a type, e.g. "people"
// for "Person" and "order_items" for "OrderItem".
func TableName(typeName string) string {
	return inflect.Pluralize(inflect.Underscore(typeName))
}

// ColumnName returns the default column name of a field, e.g.
// "created_at" for "CreatedAt".
func ColumnName(fieldName string) string {
	return inflect.Underscore(fieldName)
}
