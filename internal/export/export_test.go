package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/storage"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
)

type staticSource struct {
	records []*models.TxRecord
	got     storage.Filter
}

func (s *staticSource) ListFiltered(_ context.Context, f storage.Filter) ([]*models.TxRecord, error) {
	s.got = f
	var out []*models.TxRecord
	for _, r := range s.records {
		if f.Operation != "" && r.Operation != f.Operation {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func testRecords() []*models.TxRecord {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := func(offset time.Duration, op, step, status, kind, amount string, gas uint64) *models.TxRecord {
		r := &models.TxRecord{
			OperationID: "op-" + op,
			Operation:   op,
			Step:        step,
			Account:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			Amount:      amount,
			Status:      status,
			FailureKind: kind,
			GasUsed:     gas,
		}
		r.CreatedAt = base.Add(offset)
		return r
	}
	return []*models.TxRecord{
		rec(2*time.Minute, "add_collateral", "add_collateral", models.StatusConfirmed, "", "1500000000000000000", 60000),
		rec(time.Minute, "add_collateral", "approve", models.StatusConfirmed, "", "1500000000000000000", 46000),
		rec(3*time.Minute, "borrow", "borrow", models.StatusConfirmed, "", "500000000000000000", 70000),
		rec(4*time.Minute, "repay", "repay", models.StatusFailed, "reverted", "1000000000000000000", 30000),
	}
}

func newExporter(src Source) *HistoryExporter {
	he := NewHistoryExporter(src, zap.NewNop())
	he.now = func() time.Time { return time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC) }
	return he
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	he := newExporter(&staticSource{records: testRecords()})

	path, err := he.Export(context.Background(), Options{Format: FormatCSV, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history_all_20260302_083000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 5)
	assert.Equal(t, Headers(), rows[0])
	// sorted by time: the approval comes first
	assert.Equal(t, "approve", rows[1][3])
	assert.Equal(t, "1.5", rows[1][6])
	assert.Equal(t, "reverted", rows[4][8])
}

func TestExportJSONWithFilter(t *testing.T) {
	dir := t.TempDir()
	src := &staticSource{records: testRecords()}
	he := newExporter(src)

	filter := storage.Filter{Operation: "add_collateral", Status: models.StatusConfirmed}
	path, err := he.Export(context.Background(), Options{Format: FormatJSON, Filter: filter, OutputDir: dir})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "history_add_collateral_confirmed_20260302_083000.json"))
	assert.Equal(t, filter, src.got)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		RecordCount int      `json:"record_count"`
		Summary     Summary  `json:"summary"`
		Records     []Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(content, &doc))
	assert.Equal(t, 2, doc.RecordCount)
	assert.Equal(t, 1, doc.Summary.Approvals)
	assert.Equal(t, "1.5", doc.Summary.Volume["add_collateral"])
	assert.Equal(t, "approve", doc.Records[0].Step)
}

func TestExportNoRecords(t *testing.T) {
	he := newExporter(&staticSource{})
	_, err := he.Export(context.Background(), Options{Format: FormatCSV, OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestExportUnsupportedFormat(t *testing.T) {
	he := newExporter(&staticSource{records: testRecords()})
	_, err := he.Export(context.Background(), Options{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(testRecords())

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Confirmed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, uint64(206000), s.TotalGas)
	assert.Equal(t, map[string]int{"add_collateral": 1, "borrow": 1}, s.ByOperation)
	assert.Equal(t, map[string]int{"reverted": 1}, s.ByFailure)
	assert.Equal(t, "0.5", s.Volume["borrow"])
	assert.NotContains(t, s.Volume, "repay")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("JSON")
	assert.Error(t, err)
}
