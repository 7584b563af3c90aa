package client

// Presenter is the display side of a chat session. Callbacks run on the
// session's receive goroutine and should not block for long.
type Presenter interface {
	// OnMessage receives every non-handshake frame, in arrival order.
	OnMessage(text string)
	// OnConnectionLost is called at most once, when the connection fails.
	// It is not called after a user-initiated Close.
	OnConnectionLost(err error)
}

// PresenterFuncs adapts plain functions to Presenter. Nil fields are ignored.
type PresenterFuncs struct {
	Message func(text string)
	Lost    func(err error)
}

func (p PresenterFuncs) OnMessage(text string) {
	if p.Message != nil {
		p.Message(text)
	}
}

func (p PresenterFuncs) OnConnectionLost(err error) {
	if p.Lost != nil {
		p.Lost(err)
	}
}
