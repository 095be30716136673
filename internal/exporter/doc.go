// Package exporter writes tables to CSV files.
//
// CSVWriter writes a header row followed by data rows, in the order given,
// with no index column. Output is staged in a temporary file in the target
// directory and renamed into place once fully written.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(paths, logger)
//	path, err := writer.WriteCSV(ctx, "clean_sample.csv", exporter.WriteOptions{
//		Headers: table.Header(),
//		Records: table.Rows(),
//	})
package exporter
