// Package token signs and verifies the three workflow token families
// (registration, access, refresh) under independent HS256 secrets.
package token
