// Package component defines the lifecycle contract shared by the fixture
// facade and the ephemeral database servers it provisions.
package component
