package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"qcping/internal/model"
)

var header = []string{
	"created",
	"network",
	"station",
	"location",
	"channel",
	"creator_id",
	"type",
	"parameter",
	"value",
	"lower_uncertainty",
	"upper_uncertainty",
	"window_length",
	"start",
	"end",
}

// WriteCSV writes quality records to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []model.Quality) error {
	return writeCSV(w, items, true)
}

// AppendCSV appends quality records to the file at path, writing the header
// only when the file is new or empty.
func AppendCSV(path string, items []model.Quality) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	return writeCSV(file, items, info.Size() == 0)
}

func writeCSV(w io.Writer, items []model.Quality, withHeader bool) error {
	writer := csv.NewWriter(w)

	if withHeader {
		if err := writer.Write(header); err != nil {
			return err
		}
	}

	for _, q := range items {
		record := []string{
			q.Created.UTC().Format(time.RFC3339Nano),
			q.WaveformID.Network,
			q.WaveformID.Station,
			q.WaveformID.Location,
			q.WaveformID.Channel,
			q.CreatorID,
			q.Type,
			q.Parameter,
			formatFloat(q.Value),
			formatOptional(q.LowerUncertainty),
			formatOptional(q.UpperUncertainty),
			strconv.FormatFloat(q.WindowLength, 'f', 3, 64),
			q.Start.UTC().Format(time.RFC3339Nano),
			q.End.UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
