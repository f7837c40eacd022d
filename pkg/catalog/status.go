package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/scoring"
)

// DefaultStaleDays is the age after which a target's scan counts as stale.
const DefaultStaleDays = 7

// LoadLastScan reads last_scan.json. A missing file yields an empty record.
func LoadLastScan(path string) (*models.LastScan, error) {
	ls := &models.LastScan{}
	if err := jsonutil.ReadFile(path, ls); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.LastScan{Scans: map[string]models.ScanInfo{}}, nil
		}
		return nil, fmt.Errorf("read last scan: %w", err)
	}
	if ls.Scans == nil {
		ls.Scans = map[string]models.ScanInfo{}
	}
	return ls, nil
}

// RecordScan stores the refresh of target in last_scan.json, keeping the
// entries of every other target.
func RecordScan(path, target string, rowCount int, at time.Time) error {
	ls, err := LoadLastScan(path)
	if err != nil {
		return err
	}
	at = at.UTC()
	ls.Scans[target] = models.ScanInfo{Timestamp: at, RowCount: rowCount}
	ls.LastUpdated = &at
	return jsonutil.WriteFile(path, ls)
}

// Status reports catalog size and per-target freshness. rows is nil when no
// snapshot exists.
func Status(rows []models.CatalogRow, lastScan *models.LastScan, now time.Time, staleDays int) models.CatalogStatus {
	if staleDays <= 0 {
		staleDays = DefaultStaleDays
	}
	status := models.CatalogStatus{Targets: []models.TargetStatus{}}
	if rows == nil {
		status.Guidance = "No catalog found. Run `ekaya-catalog refresh` to scan the configured targets."
		return status
	}

	status.Available = true
	databases := map[string]bool{}
	tables := map[models.TableKey]bool{}
	for i := range rows {
		databases[rows[i].Database] = true
		tables[rows[i].Key()] = true
	}
	status.Databases = len(databases)
	status.Tables = len(tables)
	status.Columns = len(rows)

	var stale []string
	if lastScan != nil {
		for target, scan := range lastScan.Scans {
			age := scoring.DaysBetween(scan.Timestamp, now)
			ts := models.TargetStatus{
				Target:    target,
				ScannedAt: scan.Timestamp,
				RowCount:  scan.RowCount,
				AgeDays:   age,
				Stale:     age > staleDays,
			}
			if ts.Stale {
				stale = append(stale, target)
			}
			status.Targets = append(status.Targets, ts)
		}
	}
	sort.Slice(status.Targets, func(i, j int) bool { return status.Targets[i].Target < status.Targets[j].Target })
	sort.Strings(stale)

	if len(stale) > 0 {
		status.Guidance = fmt.Sprintf("Catalog data for %s is older than %d days. Run `ekaya-catalog refresh --target <name>` to update it.",
			strings.Join(stale, ", "), staleDays)
	}
	return status
}
