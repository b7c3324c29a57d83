// Package id generates compact, time-ordered identifiers for diagnostic
// events. IDs sort lexicographically in emission order within a process.
package id
