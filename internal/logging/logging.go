// Package logging builds the process-wide structured logger. main.go
// passes it to the submission API server; the other services log through
// the standard library's log package.
package logging

import "go.uber.org/zap"

// New builds a zap logger appropriate for the given environment name.
// "development" or an empty name gets human-readable console output;
// anything else gets
// JSON output suitable for log aggregation.
func New(environment string) (*zap.Logger, error) {
	if environment == "development" || environment == "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
