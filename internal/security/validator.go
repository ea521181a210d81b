package security

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

func rules(defs [][2]string) []rule {
	out := make([]rule, 0, len(defs))
	for _, d := range defs {
		out = append(out, rule{pattern: regexp.MustCompile(d[0]), reason: d[1]})
	}
	return out
}

// writeRules reject anything that mutates data, schema or privileges, or
// reaches outside the database.
var writeRules = rules([][2]string{
	{`(?i)\b(INSERT|UPDATE|DELETE|MERGE|UPSERT|REPLACE\s+INTO)\b`, "data modification"},
	{`(?i)\b(DROP|TRUNCATE|ALTER|CREATE|RENAME)\b`, "schema change"},
	{`(?i)\b(GRANT|REVOKE)\b`, "privilege change"},
	{`(?i)\bEXEC(UTE)?\b|\bCALL\b`, "procedure call"},
	{`(?i)\bCOPY\b|\bINTO\s+(OUTFILE|DUMPFILE)\b|\bLOAD_FILE\b`, "file access"},
	{`(?i)pg_(read|write)_file|pg_ls_dir|lo_(import|export)|dblink`, "server-side function"},
	{`;\s*(--|/\*)`, "comment after statement"},
	{`(?i)\bUNION\s+ALL\s+SELECT\s+NULL`, "injection pattern"},
})

// volatileRules match statements whose result depends on the wall clock or
// a random source.
var volatileRules = rules([][2]string{
	{`(?i)\bNOW\s*\(`, "clock"},
	{`(?i)\bCURRENT_(DATE|TIME|TIMESTAMP)\b`, "clock"},
	{`(?i)\b(GETDATE|SYSDATE|CURDATE|CURTIME)\s*\(`, "clock"},
	{`(?i)\bRAND(OM)?\s*\(`, "random"},
	{`(?i)\bUUID\s*\(`, "random"},
})

// SQLValidator decides whether planner SQL is a single read-only statement.
// Only answers produced by such statements are safe to serve from cache.
type SQLValidator struct {
	blocked  []rule
	volatile []rule
}

// NewSQLValidator creates a new SQL validator
func NewSQLValidator() *SQLValidator {
	return &SQLValidator{blocked: writeRules, volatile: volatileRules}
}

// ValidationError represents a SQL validation error
type ValidationError struct {
	Message string
	Pattern string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks if a SQL query is a single read-only statement
func (v *SQLValidator) Validate(sql string) error {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return &ValidationError{Message: "empty SQL query"}
	}

	// one optional trailing semicolon
	if strings.Count(strings.TrimSuffix(sql, ";"), ";") > 0 {
		return &ValidationError{Message: "multiple statements not allowed"}
	}

	upper := strings.ToUpper(sql)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return &ValidationError{Message: "only SELECT statements allowed"}
	}

	for _, r := range v.blocked {
		if r.pattern.MatchString(sql) {
			return &ValidationError{
				Message: "blocked SQL pattern detected: " + r.reason,
				Pattern: r.pattern.String(),
			}
		}
	}

	return nil
}

// Cacheable reports whether an answer backed by sql may be served from the
// result cache. Answers without SQL are cacheable; answers with SQL must come
// from a single read-only statement that does not read the clock or a
// random source.
func (v *SQLValidator) Cacheable(sql string) bool {
	if strings.TrimSpace(sql) == "" {
		return true
	}
	if err := v.Validate(sql); err != nil {
		return false
	}
	for _, r := range v.volatile {
		if r.pattern.MatchString(sql) {
			return false
		}
	}
	return true
}
