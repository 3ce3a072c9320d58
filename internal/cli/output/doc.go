// Package output renders pairmesh-cli results as a table, JSON or YAML.
//
// Tables are drawn with go-pretty. A struct becomes a FIELD/VALUE table
// keyed by its json tag names, a map becomes a KEY/VALUE table with
// sorted keys, and a slice of structs becomes one row per element.
package output
