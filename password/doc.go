// Package password provides the one-way credential primitive used by the
// engine for both account passwords and email-verification OTPs.
package password
