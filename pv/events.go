package pv

import (
	"fmt"
	"time"
)

type Severity int

const (
	SeverityNoAlarm Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityInvalid
)

func (s Severity) String() string {
	switch s {
	case SeverityNoAlarm:
		return "NO_ALARM"
	case SeverityMinor:
		return "MINOR"
	case SeverityMajor:
		return "MAJOR"
	case SeverityInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Reading is a value with its alarm state and timestamp.
type Reading struct {
	Value     any
	Status    int
	Severity  Severity
	Timestamp time.Time
}

// Metadata is everything a [Channel] buffers about a remote value.
type Metadata struct {
	Reading

	Units          string
	Precision      int
	LowerCtrlLimit float64
	UpperCtrlLimit float64
	LowerDispLimit float64
	UpperDispLimit float64
	EnumStrings    []string

	ReadAccess  bool
	WriteAccess bool
}

// Clone returns a copy of md that shares no slices with it.
func (md Metadata) Clone() Metadata {
	if md.EnumStrings != nil {
		md.EnumStrings = append([]string(nil), md.EnumStrings...)
	}
	return md
}

type ConnectionEvent struct {
	Name      string
	Connected bool
}

type AccessEvent struct {
	Name  string
	Read  bool
	Write bool
}

type MonitorEvent struct {
	Name string
	Reading
}

type PutCompletion struct {
	Name  string
	Value any
	Err   error // Err is set if the write failed after it was accepted.
}

type (
	ConnectionCallback = func(ConnectionEvent)
	AccessCallback     = func(AccessEvent)
	MonitorCallback    = func(MonitorEvent)
	PutCallback        = func(PutCompletion)
)
