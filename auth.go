package feedsync

// onAuthChange reacts to session transitions. Signing in leaves
// StateSignInRequired at once; signing out discards in-flight responses.
// Both restart the refresh timer under the new auth state.
func (c *client) onAuthChange(authenticated bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	prev := c.state
	if authenticated {
		if c.state == StateSignInRequired {
			if c.loaded {
				c.state = StateLoaded
			} else {
				c.state = StateIdle
			}
		}
	} else {
		c.generation++
	}
	next := c.state
	c.resetTimerLocked()
	c.mu.Unlock()

	c.logger.Debug().Bool("authenticated", authenticated).Stringer("state", next).Msg("Session changed")
	c.hooks.stateChanged(prev, next)
}
