package logger

const (
	Main      = "main"
	Transport = "transport"
	Frame     = "frame"
	Iface     = "iface"
	Filter    = "filter"
	RawSocket = "rawsocket"
	Receiver  = "receiver"
	Queue     = "queue"
	IPC       = "ipc"
	ChatFrame = "chatframe"
	Privilege = "privilege"
	Lifecycle = "lifecycle"
	Config    = "config"
)
