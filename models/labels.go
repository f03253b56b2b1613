// Package models - Output class tables for freshness classifiers.
package models

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LabelTable is the ordered list of class names, positionally aligned with the indices of
// a model's output vector. The alignment is a contract with the model artifact and cannot
// be verified at runtime.
type LabelTable []string

// FreshnessLabels is the table the bundled food model was trained with.
var FreshnessLabels = LabelTable{"Fresh", "Rotten"}

// Len returns the number of classes.
func (t LabelTable) Len() int {
	return len(t)
}

// Lookup returns the label for a class index.
//
// Arguments:
//   - index: The output class index.
//
// Returns:
//   - string: The label.
//   - error: An error if the index is outside the table.
func (t LabelTable) Lookup(index int) (string, error) {
	if index < 0 || index >= len(t) {
		return "", errors.Errorf("class index %d outside label table of %d entries", index, len(t))
	}
	return t[index], nil
}

// Index returns the position of a label, or -1 if it is not in the table.
func (t LabelTable) Index(label string) int {
	for i, l := range t {
		if l == label {
			return i
		}
	}
	return -1
}

// LoadLabels reads a label table from a text file, one label per line. Blank lines and
// lines starting with '#' are ignored.
//
// Arguments:
//   - path: The labels file.
//
// Returns:
//   - LabelTable: The labels in file order.
//   - error: An error if the file cannot be read, is empty or repeats a label.
func LoadLabels(path string) (LabelTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open labels %s", path)
	}
	defer file.Close()

	var table LabelTable
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			return nil, errors.Errorf("duplicate label %q in %s", line, path)
		}
		seen[line] = true
		table = append(table, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read labels %s", path)
	}
	if len(table) == 0 {
		return nil, errors.Errorf("labels file %s is empty", path)
	}

	return table, nil
}
