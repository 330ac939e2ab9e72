package db

import (
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var (
	// stringLiteralRegex matches single-quoted strings, handling escaped quotes.
	stringLiteralRegex = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

	// numericLiteralRegex matches integer and float literals.
	numericLiteralRegex = regexp.MustCompile(`\b\d+\.?\d*\b`)

	// hexLiteralRegex matches hex literals like 0xDEADBEEF.
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)
)

// DefaultQuerySanitizer replaces string, numeric, and hex literals in a
// query with "?" placeholders so sensitive values never reach spans or the
// trace sink.
func DefaultQuerySanitizer(query string) string {
	query = stringLiteralRegex.ReplaceAllString(query, "?")
	query = hexLiteralRegex.ReplaceAllString(query, "?")
	query = numericLiteralRegex.ReplaceAllString(query, "?")
	return query
}

// spanName returns a span name from a SQL query: the SQL operation
// (SELECT, INSERT, ...) or "SQL" for empty or unknown text.
func spanName(query string) string {
	if op := extractOperation(query); op != "" {
		return op
	}
	return "SQL"
}

// extractOperation extracts the leading SQL keyword from a query, uppercased.
func extractOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	if i := strings.IndexAny(query, " \t\n\r"); i >= 0 {
		return strings.ToUpper(query[:i])
	}
	return strings.ToUpper(query)
}

// sanitize applies the configured sanitizer, if any.
func (cfg *config) sanitize(query string) string {
	if cfg.QuerySanitizer != nil {
		return cfg.QuerySanitizer(query)
	}
	return query
}

// sessionAttributes returns the base span attributes for a session.
func sessionAttributes(backend Backend, role string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", backend.String()),
		attribute.String("db.instance", role),
	}
}

// queryAttributes returns span attributes for one query on a session.
func (cfg *config) queryAttributes(backend Backend, role, query string) []attribute.KeyValue {
	attrs := sessionAttributes(backend, role)
	if !cfg.DisableQuery && query != "" {
		attrs = append(attrs, attribute.String("db.statement", cfg.sanitize(query)))
	}
	if op := extractOperation(query); op != "" {
		attrs = append(attrs, attribute.String("db.operation", op))
	}
	return attrs
}
