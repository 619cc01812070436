package eventjs

type Stats struct {
	EventsSeen    int64
	EventsDropped int64
	EventsChanged int64
	HookErrors    int64
	HookTimeouts  int64
}

type Options struct {
	// HookTimeout is a Go duration string; empty means no limit.
	HookTimeout string
}

type ModuleInfo struct {
	Name         string
	HasFilter    bool
	HasTransform bool
	HasInit      bool
	HasShutdown  bool
	HasOnError   bool
}
