// Package registry records datasets and the processing jobs run against
// them. Callers depend on the Repository interface; SQLite backs the
// application and Memory backs tests and throwaway runs.
package registry
