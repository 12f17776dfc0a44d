package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/aumai/agentci/logger"
	"github.com/aumai/agentci/model"
	"gopkg.in/yaml.v3"
)

// ErrSourceNotFound marks a test source location that does not exist,
// as opposed to one that exists but cannot be parsed.
var ErrSourceNotFound = errors.New("test source not found")

// MalformedSourceError names the file that failed to parse or validate.
// Any malformed file is fatal to the whole load.
type MalformedSourceError struct {
	File string
	Err  error
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed test source %s: %v", e.File, e.Err)
}

func (e *MalformedSourceError) Unwrap() error {
	return e.Err
}

// LoadTests discovers and parses every .yaml/.yml file under dir,
// recursively, in sorted path order. A file path is accepted too and
// parsed directly.
func LoadTests(dir string) ([]model.TestCase, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, dir)
		}
		return nil, fmt.Errorf("cannot access test source %s: %w", dir, err)
	}

	if !info.IsDir() {
		return loadYAMLFile(dir)
	}

	var files []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to scan test source %s: %w", dir, walkErr)
	}
	sort.Strings(files)

	testCases := make([]model.TestCase, 0)
	for _, file := range files {
		cases, err := loadYAMLFile(file)
		if err != nil {
			return nil, err
		}
		testCases = append(testCases, cases...)
	}

	logger.Logger.Debug("Test cases loaded", "source", dir, "files", len(files), "cases", len(testCases))
	return testCases, nil
}

// LoadFile parses a single test definition file.
func LoadFile(path string) ([]model.TestCase, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("cannot access test source %s: %w", path, err)
	}
	return loadYAMLFile(path)
}

// loadYAMLFile parses one file into zero or more test cases. Accepted
// top-level shapes: a single mapping, a list of mappings, or a mapping
// with a `tests` key holding a list. Empty or null files yield zero
// cases.
func loadYAMLFile(path string) ([]model.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedSourceError{File: path, Err: err}
	}
	if raw == nil {
		return nil, nil
	}

	var records []interface{}
	switch value := raw.(type) {
	case []interface{}:
		records = value
	case map[string]interface{}:
		if tests, ok := value["tests"].([]interface{}); ok {
			records = tests
		} else {
			records = []interface{}{value}
		}
	default:
		return nil, &MalformedSourceError{
			File: path,
			Err:  fmt.Errorf("unexpected top-level YAML structure: %T", raw),
		}
	}

	cases := make([]model.TestCase, 0, len(records))
	for _, record := range records {
		if _, ok := record.(map[string]interface{}); !ok {
			continue
		}

		// Round-trip the generic record through YAML so struct tags and
		// type coercion apply uniformly regardless of the file shape.
		encoded, err := yaml.Marshal(record)
		if err != nil {
			return nil, &MalformedSourceError{File: path, Err: err}
		}

		var testCase model.TestCase
		if err := yaml.Unmarshal(encoded, &testCase); err != nil {
			return nil, &MalformedSourceError{File: path, Err: err}
		}
		if err := testCase.Validate(); err != nil {
			return nil, &MalformedSourceError{File: path, Err: err}
		}
		cases = append(cases, testCase)
	}

	return cases, nil
}
