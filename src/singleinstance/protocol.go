package singleinstance

import (
	"fmt"
	"strings"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	successStatus = "SUCCESS\n"
	errorStatus   = "ERROR\n"

	modeStdout = "STDOUT"
	modeWindow = "WINDOW"
)

// FormatRequest renders the request line sent by the client.
func FormatRequest(r Request) string {
	mode := modeWindow
	if r.OutputToStdout {
		mode = modeStdout
	}
	return fmt.Sprintf("RUN %s %s\n", r.Operation, mode)
}

// ParseRequest parses a "RUN <operation> STDOUT|WINDOW" line.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "RUN" {
		return Request{}, fmt.Errorf("malformed request %q", strings.TrimSpace(line))
	}
	switch fields[2] {
	case modeStdout:
		return Request{Operation: fields[1], OutputToStdout: true}, nil
	case modeWindow:
		return Request{Operation: fields[1]}, nil
	}
	return Request{}, fmt.Errorf("unknown output mode %q", fields[2])
}
