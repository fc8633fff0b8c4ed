package mocks

// Mock implementations used by tests
//go:generate mockgen -destination=./mock_store.go -package=mocks "github.com/armadaproject/jobbench/internal/jobbench/lifecycle" Store
