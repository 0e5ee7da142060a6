// Package analyzer holds the contracts shared by the analysis packages.
package analyzer

import "context"

// TreeAnalyzer analyzes every qualifying source file below a root directory.
type TreeAnalyzer[T any] interface {
	// Analyze discovers the files under root and returns the aggregate result.
	Analyze(ctx context.Context, root string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
