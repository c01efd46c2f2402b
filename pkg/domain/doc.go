// Package domain holds the publishing pipeline's data model: projects,
// version snapshots, publish jobs and their events, plus the sentinel errors
// shared by every layer.
package domain
