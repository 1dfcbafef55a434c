package generator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDataset serializes the dataset as YAML to w.
func WriteDataset(dataset Dataset, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(dataset); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return encoder.Close()
}

// WriteDatasetFile writes the dataset to path, creating parent directories.
func WriteDatasetFile(dataset Dataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := WriteDataset(dataset, file); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
