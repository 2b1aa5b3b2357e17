// Package services composes the dataset repository, the filter engine and
// the aggregation queries into the dashboard served over HTTP and the CLI.
//
// A request flows through three steps:
//
//  1. Resolve turns a DashboardQuery into a Selection, filling defaults
//     from the dataset (latest date, week or month) and validating input.
//  2. The Selection's FilterSpec is applied to the cached Table.
//  3. Every query in package analytics runs over the filtered records.
//
// The daily trend is the exception: it always covers the whole Table.
package services
