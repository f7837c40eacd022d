package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckKeywordForInjection(t *testing.T) {
	tests := []struct {
		name            string
		keyword         string
		expectInjection bool
	}{
		{name: "table name", keyword: "customer", expectInjection: false},
		{name: "snake case column", keyword: "order_date", expectInjection: false},
		{name: "numeric", keyword: "12345", expectInjection: false},
		{name: "classic tautology", keyword: "' OR '1'='1", expectInjection: true},
		{name: "stacked drop", keyword: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select", keyword: "1 UNION SELECT * FROM passwords", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckKeywordForInjection(tt.keyword)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.keyword, result.Keyword)
			assert.NotEmpty(t, result.Fingerprint)
		})
	}
}

func TestCheckKeywords(t *testing.T) {
	results := CheckKeywords([]string{"orders", "'; DROP TABLE users--", "amount"})
	require.Len(t, results, 1)
	assert.Equal(t, "'; DROP TABLE users--", results[0].Keyword)

	assert.Empty(t, CheckKeywords(nil))
}
