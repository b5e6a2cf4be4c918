// Package domain defines the core domain types and interfaces.
//
// Emotion and its closed set, votes and the derived distribution, strategies and
// selections, and the RoomStore port implemented by the storage adapters.
// No implementation code beyond small value helpers.
package domain
