// Package demo holds the shop domain the ormdemo command works on: model declarations and
// fixtures in YAML, and the table schema per driver.
package demo
