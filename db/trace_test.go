package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultQuerySanitizer(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "given string literals, then they are masked",
			query: "SELECT * FROM accounts WHERE accountid = 'GABC'",
			want:  "SELECT * FROM accounts WHERE accountid = ?",
		},
		{
			name:  "given numeric literals, then they are masked",
			query: "DELETE FROM txhistory WHERE ledgerseq <= 12345",
			want:  "DELETE FROM txhistory WHERE ledgerseq <= ?",
		},
		{
			name:  "given hex literals, then they are masked",
			query: "SELECT * FROM ledgerheaders WHERE ledgerhash = 0xDEADBEEF",
			want:  "SELECT * FROM ledgerheaders WHERE ledgerhash = ?",
		},
		{
			name:  "given escaped quotes inside a literal, then the whole literal is masked",
			query: `INSERT INTO storestate VALUES ('it\'s fine')`,
			want:  "INSERT INTO storestate VALUES (?)",
		},
		{
			name:  "given no literals, then the query is unchanged",
			query: "SELECT state FROM storestate WHERE statename = ?",
			want:  "SELECT state FROM storestate WHERE statename = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultQuerySanitizer(tt.query))
		})
	}
}

func TestSpanName(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "given a select, then the operation names the span",
			query: "SELECT balance FROM accounts",
			want:  "SELECT",
		},
		{
			name:  "given lowercase text, then the operation is uppercased",
			query: "insert into peers values (?)",
			want:  "INSERT",
		},
		{
			name:  "given a single keyword, then it names the span",
			query: "COMMIT",
			want:  "COMMIT",
		},
		{
			name:  "given empty text, then the generic name is used",
			query: "   ",
			want:  "SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spanName(tt.query))
		})
	}
}
