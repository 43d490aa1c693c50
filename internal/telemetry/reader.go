package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadRecords loads a previously written telemetry CSV back into records,
// restoring the degree symbols the sink replaced with "deg". Rows that do
// not parse are skipped; the track exporter decides what to do about rows
// with unusable coordinates.
func ReadRecords(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[col] = i
	}
	for _, col := range CSVHeader {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("CSV missing column %q", col)
		}
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		speed, err := strconv.Atoi(row[colMap["Speed"]])
		if err != nil || speed < 0 {
			continue
		}

		records = append(records, Record{
			Filename:  row[colMap["Filename"]],
			Date:      row[colMap["Date"]],
			Time:      row[colMap["Time"]],
			SpeedMph:  speed,
			Latitude:  restoreDegree(row[colMap["Latitude"]]),
			Longitude: restoreDegree(row[colMap["Longitude"]]),
		})
	}

	return records, nil
}

func restoreDegree(coord string) string {
	return strings.Replace(coord, "deg", "°", 1)
}
