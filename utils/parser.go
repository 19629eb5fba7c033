package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/disburse/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseEntries reads the line oriented `address,amount` format. Whitespace is
// removed from every line and blank lines are skipped. The first malformed
// line fails the whole load.
func ParseEntries(r io.Reader) ([]types.Entry, error) {
	var entries []types.Entry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.Join(strings.Fields(raw), "")
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, types.InvalidEntry(lineNo, raw, fmt.Errorf("expected address,amount"))
		}

		recipient, err := ValidateAddress(fields[0])
		if err != nil {
			return nil, types.InvalidEntry(lineNo, raw, err)
		}

		amount, err := ParseAmount(fields[1])
		if err != nil {
			return nil, types.InvalidEntry(lineNo, raw, err)
		}

		entries = append(entries, types.Entry{
			Line:      lineNo,
			Recipient: recipient,
			Amount:    amount,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	return entries, nil
}

// LoadEntries parses the entries file at path.
func LoadEntries(path string) ([]types.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entries: %w", err)
	}
	defer f.Close()

	return ParseEntries(f)
}

// DecodeConfig parses a Config from JSON without filling defaults, so that
// callers can layer overrides before validation.
func DecodeConfig(data []byte) (types.Config, error) {
	var config types.Config

	if err := json.Unmarshal(data, &config); err != nil {
		return types.Config{}, &types.DisburseError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse config: %v", err),
		}
	}
	return config, nil
}

// ParseConfig parses a Config from JSON, fills defaults and validates it.
func ParseConfig(data []byte) (*types.Config, error) {
	config, err := DecodeConfig(data)
	if err != nil {
		return nil, err
	}

	config = config.WithDefaults()
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfig reads and parses the JSON config file at path.
func LoadConfig(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.DisburseError{
			Code:    types.ErrConfigError,
			Message: "failed to read config",
			Err:     err,
		}
	}
	return ParseConfig(data)
}

// ValidateConfig checks the struct tags of config.
func ValidateConfig(config *types.Config) error {
	if err := validate.Struct(config); err != nil {
		return &types.DisburseError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}
