// Package config holds the settings that drive a receipt render (display
// width, density, padding, output format) and the logger settings. Settings
// are read from an optional JSON file and validated before use.
package config
