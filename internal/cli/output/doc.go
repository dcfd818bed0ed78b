// Package output renders geminid CLI results as a table, JSON or YAML.
package output
