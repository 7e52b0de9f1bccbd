// Package record decodes raw relay events into typed calendar records and
// encodes records back into unsigned events for publishing.
//
// Six shapes are recognized: calendars, availability templates, date-based
// events, time-based events (which double as booking requests when they tag
// a participant other than their author), RSVPs, and deletions. Tag arrays
// are read once here; downstream packages work with the typed fields only.
//
// Decoding is pure. A record missing a required tag is rejected with a
// fault.CodeMalformedEvent error and the caller drops it.
package record
