// Package availability turns an availability template and a busy set into
// bookable time slots and offerable dates.
//
// Every computation takes "now" as an argument so identical inputs always
// produce identical output.
package availability
