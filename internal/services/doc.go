// Package services holds the pieces shared by the sync workflow and the
// external tool integrations underneath it.
//
// Error markers plus Wrap give every failure a classification that survives
// wrapping, so the orchestrator can turn any step error into a history label
// and a notification without inspecting strings. The context helpers stamp
// session, game, and step identifiers that the logging package lifts into
// structured fields.
package services
