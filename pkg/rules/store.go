package rules

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// patternSeparator splits the important/ignore CSV cells into pattern sets.
const patternSeparator = ";"

// defaultRules seed the rules file when none exists.
var defaultRules = []ContextRule{
	{
		ID:          "mfs-noise",
		ContextTag:  "mfs",
		Important:   []string{"TRANSACTION FAILED", "REVERSAL", "TIMEOUT"},
		Ignore:      []string{"HEARTBEAT", "HEALTH CHECK"},
		Description: "Mobile financial services: surface failures, drop keepalive noise",
	},
	{
		ID:          "npsb-settlement",
		ContextTag:  "npsb",
		Important:   []string{"SETTLEMENT", "DECLINED", "INSUFFICIENT"},
		Ignore:      []string{"BALANCE INQUIRY"},
		Description: "NPSB interbank transfers: settlement and decline signals",
	},
	{
		ID:          "card-disputes",
		ContextTag:  "card",
		Important:   []string{"CHARGEBACK", "AUTH DECLINED", "3DS"},
		Ignore:      []string{"BIN LOOKUP"},
		Description: "Card transactions: authorization and chargeback signals",
	},
}

// Load reads the context rules CSV, creating it with default rules when it
// does not exist. Rows: id, context, important, ignore, description; the
// pattern cells are ";"-separated.
func Load(path string) ([]ContextRule, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
		slog.Info("Created default context rules file", "path", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open context rules %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse context rules %s: %w", path, err)
	}

	var out []ContextRule
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(row[0], "id") {
			continue // header
		}
		if len(row) < 4 {
			slog.Warn("Skipping short context rule row", "path", path, "row", i+1)
			continue
		}
		rule := ContextRule{
			ID:         strings.TrimSpace(row[0]),
			ContextTag: strings.TrimSpace(row[1]),
			Important:  splitPatterns(row[2]),
			Ignore:     splitPatterns(row[3]),
		}
		if len(row) > 4 {
			rule.Description = strings.TrimSpace(row[4])
		}
		if rule.ID == "" || rule.ContextTag == "" {
			slog.Warn("Skipping context rule without id or context", "path", path, "row", i+1)
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func splitPatterns(cell string) []string {
	var out []string
	for _, p := range strings.Split(cell, patternSeparator) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create default rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "context", "important", "ignore", "description"}); err != nil {
		return err
	}
	for _, r := range defaultRules {
		row := []string{
			r.ID,
			r.ContextTag,
			strings.Join(r.Important, patternSeparator),
			strings.Join(r.Ignore, patternSeparator),
			r.Description,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
