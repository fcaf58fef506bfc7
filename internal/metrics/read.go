package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"qcping/internal/model"
)

// ReadCSV loads quality records from a CSV file.
func ReadCSV(path string) ([]model.Quality, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]model.Quality, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if len(records[0]) > 0 && records[0][0] == header[0] {
		start = 1
	}

	items := make([]model.Quality, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) < len(header) {
			return nil, fmt.Errorf("invalid record at line %d", i+1)
		}
		created, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid created at line %d: %w", i+1, err)
		}
		value, err := strconv.ParseFloat(rec[8], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value at line %d: %w", i+1, err)
		}
		windowLength, _ := strconv.ParseFloat(rec[11], 64)
		start, _ := time.Parse(time.RFC3339Nano, rec[12])
		end, _ := time.Parse(time.RFC3339Nano, rec[13])
		items = append(items, model.Quality{
			WaveformID: model.StreamID{
				Network:  rec[1],
				Station:  rec[2],
				Location: rec[3],
				Channel:  rec[4],
			},
			CreatorID:        rec[5],
			Type:             rec[6],
			Parameter:        rec[7],
			Value:            value,
			LowerUncertainty: parseOptional(rec[9]),
			UpperUncertainty: parseOptional(rec[10]),
			WindowLength:     windowLength,
			Created:          created,
			Start:            start,
			End:              end,
		})
	}

	return items, nil
}

func parseOptional(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
