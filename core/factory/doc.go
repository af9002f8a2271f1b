// Package factory instantiates pluggable modules from configuration. A
// module is selected by a type name and configured by a map of raw settings
// that its factory decodes with Decode.
package factory
