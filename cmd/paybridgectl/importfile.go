package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vanshika/paybridge/internal/service"
)

// importFile is either a bare list of records or {transactions: [...]}.
// JSON files parse through the same decoder.
type importFile struct {
	Transactions []importRecord   `yaml:"transactions"`
	Callbacks    []importCallback `yaml:"callbacks"`
}

// importCallback is a recorded network notification. Fields are kept raw so
// they pass through the same normalizer as live traffic.
type importCallback struct {
	TransactionID string `yaml:"transactionId"`
	Status        string `yaml:"status"`
	Transport     string `yaml:"transport"`
}

type importRecord struct {
	TransactionID string       `yaml:"transactionId"`
	Amount        importAmount `yaml:"amount"`
	Currency      string       `yaml:"currency"`
}

// importAmount keeps the literal text of the scalar so 0.10 stays exact.
type importAmount struct {
	decimal.Decimal
}

func (a *importAmount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", node.Line, node.Value)
	}
	a.Decimal = d
	return nil
}

func loadImportFile(path string) ([]service.InitiateInput, error) {
	file, err := readImportFile(path)
	if err != nil {
		return nil, err
	}
	return file.inputs(), nil
}

func readImportFile(path string) (importFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return importFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	file, err := parseImport(raw)
	if err != nil {
		return importFile{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return file, nil
}

func (f importFile) inputs() []service.InitiateInput {
	inputs := make([]service.InitiateInput, 0, len(f.Transactions))
	for _, rec := range f.Transactions {
		inputs = append(inputs, service.InitiateInput{
			TransactionID: rec.TransactionID,
			Amount:        rec.Amount.Decimal,
			Currency:      rec.Currency,
		})
	}
	return inputs
}

func parseImport(raw []byte) (importFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return importFile{}, err
	}
	if len(doc.Content) == 0 {
		return importFile{}, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var file importFile
		if err := root.Decode(&file.Transactions); err != nil {
			return importFile{}, err
		}
		return file, nil
	case yaml.MappingNode:
		var file importFile
		if err := root.Decode(&file); err != nil {
			return importFile{}, err
		}
		return file, nil
	default:
		return importFile{}, fmt.Errorf("line %d: expected a list of transactions", root.Line)
	}
}
