// Package common holds the ambient pieces shared by the kvstorage command and
// the store packages: the logger factory that formats dragonboat's named
// loggers as "LEVEL | name | message", and the command configuration.
package common
