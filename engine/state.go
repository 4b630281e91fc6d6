package engine

import "fmt"

type State int

const (
	Unregistered State = iota
	Registering
	Registered
	KeyExchanging
	Ready
	Sending
	AwaitingVerdict
	Retrying
	Done
	Aborted
)

var stateNames = [...]string{
	Unregistered:    "Unregistered",
	Registering:     "Registering",
	Registered:      "Registered",
	KeyExchanging:   "KeyExchanging",
	Ready:           "Ready",
	Sending:         "Sending",
	AwaitingVerdict: "AwaitingVerdict",
	Retrying:        "Retrying",
	Done:            "Done",
	Aborted:         "Aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further requests may be issued.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}
