package plugin

// Type is the functional category of a plugin.
type Type string

const (
	// TypeDataSource plugins feed dataset descriptions into the host.
	TypeDataSource Type = "datasource"
	// TypeProcessor plugins observe or transform what other plugins
	// produce.
	TypeProcessor Type = "processor"
)

// Capability names a privilege a plugin asks the host for.
type Capability string

const (
	CapabilityFilesystem Capability = "filesystem"
	CapabilityNetwork    Capability = "network"
	CapabilityExecution  Capability = "execution"
)

// Info is the static metadata a plugin reports about itself.
type Info struct {
	ID           string
	Name         string
	Description  string
	Author       string
	Version      string
	Category     Type
	Capabilities []Capability
}

// State tracks where an instance sits in its lifecycle.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialised State = "initialised"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
)
