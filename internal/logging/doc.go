// Package logging provides leveled, field-tagged logging for the supervisor.
package logging
