// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and fixture
// builders for raw tables (CSV and xlsx) used by the tabular, processing and
// operations tests.
package shared
