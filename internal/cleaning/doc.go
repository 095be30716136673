// Package cleaning implements the basic_cleaning pipeline step: fetch a raw
// listings table, drop rows whose price falls outside an inclusive range,
// normalise the last_review column to dates and publish the result as a new
// artifact version.
//
// The step is a single synchronous pass. Every phase is logged, traced and
// timed; any failure aborts the run and marks it failed in the tracker.
package cleaning
