// Package http implements the dashboard's JSON API handlers. Handlers parse
// the request, call a service and render the result; every failure goes
// through apierrors.ErrorHandler and is returned as RFC 7807 problem details.
//
// # Routes
//
//	GET  /api/dashboard               full dashboard for a selection
//	GET  /api/dashboard/{query}       one untruncated ranked table
//	GET  /api/dataset                 loaded dataset summary
//	GET  /api/dataset/options         selectable wards, schedules and periods
//	POST /api/dataset/reload          reread the source and notify websocket clients
//	GET  /api/export/{query}.csv      one table as CSV
//	GET  /api/export/dashboard.xlsx   every table as a workbook
//	GET  /api/health[/ready|/live]    health probes
//
// # Selections
//
// Dashboard, table and export routes share the same query parameters:
//
//	mode=daily|weekly|monthly|range  date=YYYY-MM-DD  week=YYYY-MM-DD
//	month=YYYY-MM  start=YYYY-MM-DD  end=YYYY-MM-DD  top_n=5..50
//	ward=<name> (repeatable)  schedule=<label> (repeatable)
//
// An empty selection is not an error: the response carries "status":"no_data".
package http
