// Package psu maps named logical outlets onto smart plug relays and exposes
// them as a single power supply: a mandatory "main" outlet plus optional
// auxiliary outlets that follow it when enabled.
package psu
