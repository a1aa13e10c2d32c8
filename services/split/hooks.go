package split

// Hooks is the capability the firmware loop holds for boot and housekeeping.
type Hooks interface {
	// PreInit runs before any subsystem that uses the link starts.
	PreInit()
	// PostInit runs once every subsystem is up.
	PostInit()
	// Tick runs once per scheduler pass and returns promptly.
	Tick()
}

// NopHooks is the default for boards without a split link.
type NopHooks struct{}

func (NopHooks) PreInit()  {}
func (NopHooks) PostInit() {}
func (NopHooks) Tick()     {}

var (
	_ Hooks = NopHooks{}
	_ Hooks = (*Service)(nil)
)
