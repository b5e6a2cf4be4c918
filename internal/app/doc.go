// Package app provides the application service layer.
//
// Room is the single owned aggregate of the listening room: it serializes vote
// submission, selection and reset over a domain.RoomStore and runs the two
// selection strategies and the coverage evaluation. HistoryRetention prunes old
// selections on a timer when enabled.
package app
