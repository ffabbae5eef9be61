package main

import "time"

// Flag structs to decouple cobra from logic for testing.

type RunFlags struct {
	Daemonize bool
	PidFile   string
	LogFile   string
	Once      bool // one cycle, then exit
}

type CheckFlags struct {
	JSON    bool
	Timeout time.Duration
}

type StatusFlags struct {
	Port int // 0 shows every target
	JSON bool
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
	CACert     string
	Insecure   bool
}
