package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadImportFileYAMLList(t *testing.T) {
	path := writeTemp(t, "batch.yaml", `
- transactionId: tx-001
  amount: 0.10
  currency: INR
- amount: "1250"
  currency: usd
`)
	inputs, err := loadImportFile(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "tx-001", inputs[0].TransactionID)
	assert.True(t, inputs[0].Amount.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, "INR", inputs[0].Currency)
	assert.Empty(t, inputs[1].TransactionID)
	assert.True(t, inputs[1].Amount.Equal(decimal.NewFromInt(1250)))
}

func TestLoadImportFileWrappedJSON(t *testing.T) {
	path := writeTemp(t, "batch.json", `{"transactions":[{"transactionId":"tx-9","amount":42.5,"currency":"EUR"}]}`)
	inputs, err := loadImportFile(path)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "tx-9", inputs[0].TransactionID)
	assert.Equal(t, "42.5", inputs[0].Amount.String())
}

func TestLoadImportFileErrors(t *testing.T) {
	cases := map[string]string{
		"bad amount":  "- transactionId: a\n  amount: lots\n  currency: INR\n",
		"nested":      "- transactionId: a\n  amount: [1]\n  currency: INR\n",
		"scalar root": "just text\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadImportFile(writeTemp(t, "f.yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := loadImportFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadImportFileEmpty(t *testing.T) {
	inputs, err := loadImportFile(writeTemp(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, inputs)
}
