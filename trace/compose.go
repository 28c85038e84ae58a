package trace

// Compose returns a new Client which has all hooks from t and x.
// Hooks of t are called first.
func (t *Client) Compose(x *Client) *Client {
	ret := &Client{}
	ret.OnSessionNew = composeHook(t.OnSessionNew, x.OnSessionNew)
	ret.OnSessionDelete = composeHook(t.OnSessionDelete, x.OnSessionDelete)
	ret.OnSessionKeepAlive = composeHook(t.OnSessionKeepAlive, x.OnSessionKeepAlive)
	ret.OnPoolGet = composeHook(t.OnPoolGet, x.OnPoolGet)
	ret.OnPoolPut = composeHook(t.OnPoolPut, x.OnPoolPut)
	ret.OnTxBegin = composeHook(t.OnTxBegin, x.OnTxBegin)
	ret.OnTxCommit = composeHook(t.OnTxCommit, x.OnTxCommit)
	ret.OnTxRollback = composeHook(t.OnTxRollback, x.OnTxRollback)
	switch {
	case t.OnPoolStateChange == nil:
		ret.OnPoolStateChange = x.OnPoolStateChange
	case x.OnPoolStateChange == nil:
		ret.OnPoolStateChange = t.OnPoolStateChange
	default:
		h1, h2 := t.OnPoolStateChange, x.OnPoolStateChange
		ret.OnPoolStateChange = func(info PoolStateChangeInfo) {
			h1(info)
			h2(info)
		}
	}

	return ret
}

// Compose returns a new Retry which has all hooks from t and x.
func (t *Retry) Compose(x *Retry) *Retry {
	return &Retry{
		OnRetry: composeHook(t.OnRetry, x.OnRetry),
	}
}

func composeHook[Start any, Done any](
	h1, h2 func(Start) func(Done),
) func(Start) func(Done) {
	switch {
	case h1 == nil:
		return h2
	case h2 == nil:
		return h1
	default:
		return func(info Start) func(Done) {
			d1 := h1(info)
			d2 := h2(info)
			switch {
			case d1 == nil:
				return d2
			case d2 == nil:
				return d1
			default:
				return func(done Done) {
					d1(done)
					d2(done)
				}
			}
		}
	}
}
