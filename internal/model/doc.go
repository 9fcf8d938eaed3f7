// Package model defines the records medibox reads from and writes to the
// tree, and the paths they live at.
//
// Field names are shared with the mobile clients and must not change.
package model
