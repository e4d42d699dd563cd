// Package cli implements the ormdemo commands: init, seed, show and count.
package cli
