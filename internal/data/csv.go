package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// LoadCSV reads a Kaggle-style labeled image CSV:
//
//	label,pixel0,pixel1,...,pixelN
//	5,0,0,12,...,0
//
// Pixel values 0-255 are normalized to [-1, 1] to match the tanh decoder
// output range. The feature dimension comes from the header width.
// maxSamples limits the rows read; 0 loads everything.
func LoadCSV(path string, maxSamples int) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing header")
	}

	dim := len(records[0]) - 1
	if dim < 1 {
		return nil, fmt.Errorf("%w: header has %d columns, need a label plus pixels",
			ErrDimension, len(records[0]))
	}

	records = records[1:]
	if maxSamples > 0 && len(records) > maxSamples {
		records = records[:maxSamples]
	}

	inputs := make([][]float32, len(records))
	labels := make([]int32, len(records))

	for i, record := range records {
		if len(record) != dim+1 {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d",
				ErrDimension, i+1, len(record), dim+1)
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid label at row %d: %w", i+1, err)
		}
		if label < 0 {
			return nil, fmt.Errorf("negative label at row %d: %d", i+1, label)
		}
		labels[i] = int32(label)

		sample := make([]float32, dim)
		for j := 0; j < dim; j++ {
			pixel, err := strconv.Atoi(record[j+1])
			if err != nil {
				return nil, fmt.Errorf("invalid pixel at row %d, column %d: %w", i+1, j+1, err)
			}
			// 0-255 -> [-1, 1]
			sample[j] = float32(pixel)/127.5 - 1
		}
		inputs[i] = sample
	}

	return NewDataset(inputs, labels)
}
