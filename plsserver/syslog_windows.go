//go:build windows
// +build windows

package main

func initLogging(useSyslog bool) {
}
