// Package fixtures provides common test fixtures and utilities.
//
// Fixtures are reusable test data and helper functions shared across test
// suites. For TLS certificate generation, use
// github.com/skillsenselab/dispatch/security/tlstest.
package fixtures
