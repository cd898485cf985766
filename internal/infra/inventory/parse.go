package inventory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vietddude/softscan/internal/core/domain"
)

const unknownVersion = "Unknown"

// parseWMIC parses `wmic product get name,version`. The first line is the
// header; the version is the last whitespace-separated token of each row.
func parseWMIC(out []byte) []domain.Item {
	var items []domain.Item
	for i, line := range lines(out) {
		if i == 0 {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		items = append(items, domain.Item{
			Name:             strings.Join(parts[:len(parts)-1], " "),
			InstalledVersion: parts[len(parts)-1],
		})
	}
	return items
}

type systemProfilerOutput struct {
	Applications []struct {
		Name    string `json:"_name"`
		AltName string `json:"name"`
		Version string `json:"version"`
	} `json:"SPApplicationsDataType"`
}

// parseSystemProfiler parses `system_profiler SPApplicationsDataType -json`.
func parseSystemProfiler(out []byte) ([]domain.Item, error) {
	var data systemProfilerOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("parse system_profiler output: %w", err)
	}

	var items []domain.Item
	for _, app := range data.Applications {
		name := app.Name
		if name == "" {
			name = app.AltName
		}
		if name == "" {
			continue
		}
		version := app.Version
		if version == "" {
			version = unknownVersion
		}
		items = append(items, domain.Item{Name: name, InstalledVersion: version})
	}
	return items, nil
}

// parseNameVersion parses "<name> <version>" rows as printed by the
// dpkg-query and rpm formats used by the scanner.
func parseNameVersion(out []byte) []domain.Item {
	var items []domain.Item
	for _, line := range lines(out) {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		items = append(items, domain.Item{Name: parts[0], InstalledVersion: parts[1]})
	}
	return items
}

func lines(out []byte) []string {
	var res []string
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			res = append(res, line)
		}
	}
	return res
}
