package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/storage"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
	"github.com/rovshanmuradov/defilend/internal/units"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var ErrNoRecords = errors.New("no records match the export criteria")

// ParseFormat accepts "csv" or "json".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// Options configures the export behavior
type Options struct {
	Format    Format
	Filter    storage.Filter
	OutputDir string
}

// Source is the part of the history store the exporter reads.
type Source interface {
	ListFiltered(ctx context.Context, filter storage.Filter) ([]*models.TxRecord, error)
}

// HistoryExporter writes history records to files.
type HistoryExporter struct {
	source Source
	logger *zap.Logger
	now    func() time.Time
}

func NewHistoryExporter(source Source, logger *zap.Logger) *HistoryExporter {
	return &HistoryExporter{
		source: source,
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export writes the records matching options.Filter and returns the file path.
func (he *HistoryExporter) Export(ctx context.Context, options Options) (string, error) {
	if _, err := ParseFormat(string(options.Format)); err != nil {
		return "", err
	}

	records, err := he.source.ListFiltered(ctx, options.Filter)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	if options.OutputDir == "" {
		options.OutputDir = "."
	}
	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, he.filename(options))

	switch options.Format {
	case FormatCSV:
		err = writeCSV(records, outputPath)
	case FormatJSON:
		err = he.writeJSON(records, outputPath)
	}
	if err != nil {
		return "", err
	}

	he.logger.Info("History exported",
		zap.String("file", outputPath),
		zap.Int("count", len(records)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (he *HistoryExporter) filename(options Options) string {
	prefix := "history_all"
	if options.Filter.Operation != "" {
		prefix = "history_" + options.Filter.Operation
	}
	if options.Filter.Status != "" {
		prefix += "_" + options.Filter.Status
	}
	return fmt.Sprintf("%s_%s.%s", prefix, he.now().Format("20060102_150405"), options.Format)
}

// Headers is the CSV header row.
func Headers() []string {
	return []string{
		"time", "operation_id", "operation", "step", "account", "tx_hash",
		"amount", "status", "failure_kind", "error", "gas_used", "block", "duration_ms",
	}
}

func row(r *models.TxRecord) []string {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	display := r.Amount
	if ok {
		display = units.FormatEther(amount)
	}
	return []string{
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.OperationID,
		r.Operation,
		r.Step,
		r.Account,
		r.TxHash,
		display,
		r.Status,
		r.FailureKind,
		r.Error,
		strconv.FormatUint(r.GasUsed, 10),
		strconv.FormatUint(r.Block, 10),
		strconv.FormatInt(r.DurationMs, 10),
	}
}

func writeCSV(records []*models.TxRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Headers()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Record is the JSON shape of one history row.
type Record struct {
	Time        time.Time `json:"time"`
	OperationID string    `json:"operation_id"`
	Operation   string    `json:"operation"`
	Step        string    `json:"step"`
	Account     string    `json:"account"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	GasUsed     uint64    `json:"gas_used,omitempty"`
	Block       uint64    `json:"block,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
}

// Summary contains statistics for the exported records.
type Summary struct {
	Total       int               `json:"total"`
	Confirmed   int               `json:"confirmed"`
	Failed      int               `json:"failed"`
	Approvals   int               `json:"approvals"`
	TotalGas    uint64            `json:"total_gas"`
	Volume      map[string]string `json:"volume"`
	ByOperation map[string]int    `json:"by_operation"`
	ByFailure   map[string]int    `json:"by_failure,omitempty"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
}

func (he *HistoryExporter) writeJSON(records []*models.TxRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	out := make([]Record, 0, len(records))
	for _, r := range records {
		amount := r.Amount
		if v, ok := new(big.Int).SetString(r.Amount, 10); ok {
			amount = units.FormatEther(v)
		}
		out = append(out, Record{
			Time:        r.CreatedAt,
			OperationID: r.OperationID,
			Operation:   r.Operation,
			Step:        r.Step,
			Account:     r.Account,
			TxHash:      r.TxHash,
			Amount:      amount,
			Status:      r.Status,
			FailureKind: r.FailureKind,
			Error:       r.Error,
			GasUsed:     r.GasUsed,
			Block:       r.Block,
			DurationMs:  r.DurationMs,
		})
	}

	doc := struct {
		ExportTime  time.Time `json:"export_time"`
		RecordCount int       `json:"record_count"`
		Summary     Summary   `json:"summary"`
		Records     []Record  `json:"records"`
	}{
		ExportTime:  he.now(),
		RecordCount: len(out),
		Summary:     Summarize(records),
		Records:     out,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize aggregates records sorted by time. Volume counts confirmed
// non-approval steps per operation, in token units.
func Summarize(records []*models.TxRecord) Summary {
	s := Summary{
		Total:       len(records),
		Volume:      make(map[string]string),
		ByOperation: make(map[string]int),
		ByFailure:   make(map[string]int),
	}
	if len(records) == 0 {
		return s
	}
	s.StartDate = records[0].CreatedAt
	s.EndDate = records[len(records)-1].CreatedAt

	volume := make(map[string]*big.Int)
	for _, r := range records {
		s.TotalGas += r.GasUsed
		if r.Step == "approve" {
			s.Approvals++
		}
		switch r.Status {
		case models.StatusConfirmed:
			s.Confirmed++
			if r.Step != "approve" {
				s.ByOperation[r.Operation]++
				if v, ok := new(big.Int).SetString(r.Amount, 10); ok {
					if volume[r.Operation] == nil {
						volume[r.Operation] = new(big.Int)
					}
					volume[r.Operation].Add(volume[r.Operation], v)
				}
			}
		case models.StatusFailed:
			s.Failed++
			s.ByFailure[r.FailureKind]++
		}
	}
	for op, v := range volume {
		s.Volume[op] = units.FormatEther(v)
	}
	return s
}
