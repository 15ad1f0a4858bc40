package history

// History store defaults
const (
	DefaultCapacity    = 10
	DefaultEventBuffer = 32
)
