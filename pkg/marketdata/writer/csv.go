package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// CSVHeader is the column order written by CSVWriter.
var CSVHeader = []string{"time", "symbol", "open", "high", "low", "close", "volume"}

// CSVWriter streams bars to a CSV file through a temporary file that is
// renamed into place on Finalize.
type CSVWriter struct {
	outputPath string
	file       *os.File
	writer     *csv.Writer
	rows       int
	logger     *logger.Logger
}

func NewCSVWriter(outputPath string, log *logger.Logger) MarketDataWriter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &CSVWriter{
		outputPath: outputPath,
		logger:     log,
	}
}

func (w *CSVWriter) Initialize() error {
	file, err := os.CreateTemp(filepath.Dir(w.outputPath), filepath.Base(w.outputPath)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create csv file", err)
	}

	w.file = file
	w.writer = csv.NewWriter(file)
	w.rows = 0

	if err := w.writer.Write(CSVHeader); err != nil {
		w.Close()

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write csv header", err)
	}

	return nil
}

func (w *CSVWriter) Write(data types.MarketData) error {
	if w.writer == nil {
		return errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized or already finalized")
	}

	record := []string{
		data.Time.UTC().Format(time.RFC3339),
		data.Symbol,
		strconv.FormatFloat(data.Open, 'f', -1, 64),
		strconv.FormatFloat(data.High, 'f', -1, 64),
		strconv.FormatFloat(data.Low, 'f', -1, 64),
		strconv.FormatFloat(data.Close, 'f', -1, 64),
		strconv.FormatFloat(data.Volume, 'f', -1, 64),
	}

	if err := w.writer.Write(record); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write csv row", err)
	}

	w.rows++

	return nil
}

func (w *CSVWriter) Finalize() (string, error) {
	if w.writer == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized or already finalized")
	}

	w.writer.Flush()

	if err := w.writer.Error(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to flush csv", err)
	}

	if err := w.file.Sync(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to sync csv", err)
	}

	tmp := w.file.Name()

	if err := w.file.Close(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close csv", err)
	}

	w.file = nil
	w.writer = nil

	if err := os.Rename(tmp, w.outputPath); err != nil {
		_ = os.Remove(tmp)

		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to move csv into place", err)
	}

	w.logger.Info("Exported market data", zap.String("path", w.outputPath), zap.Int("rows", w.rows))

	return w.outputPath, nil
}

// Close discards an unfinished file.
func (w *CSVWriter) Close() error {
	if w.file == nil {
		return nil
	}

	tmp := w.file.Name()
	err := w.file.Close()
	_ = os.Remove(tmp)

	w.file = nil
	w.writer = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close csv", err)
	}

	return nil
}

func (w *CSVWriter) GetOutputPath() string {
	return w.outputPath
}
