package global

// MapChange tells the API about a new map. cb receives the map, or nil if
// it isn't global, and the client remembers it for record submission.
func (c *Client) MapChange(name string, cb func(*MapInfo)) error {
	c.mu.Lock()
	c.opts.Map = name
	c.mu.Unlock()
	return request(c, EventMapChange, MapChange{Name: name}, func(ack MapChangeAck) {
		c.mu.Lock()
		c.currentMap = ack.Map
		c.mu.Unlock()
		if ack.Map != nil {
			c.logger.Info("map is approved", "map", ack.Map.Name)
		} else {
			c.logger.Info("map is not approved", "map", name)
		}
		if cb != nil {
			cb(ack.Map)
		}
	}, false)
}

// PlayerJoin announces a player. Players joining before the handshake are
// part of the hello instead.
func (c *Client) PlayerJoin(p Player, cb func(PlayerJoinAck)) error {
	c.mu.Lock()
	c.players[p.ID] = p
	c.mu.Unlock()

	switch c.State() {
	case StateDisconnected:
		return ErrNotConnected
	case StateConnected, StateHandshakeInitiated, StateHandshakeCompleted:
		return request(c, EventPlayerJoin, p, cb, true)
	}
	return nil
}

// PlayerLeave announces a player leaving
func (c *Client) PlayerLeave(p Player) error {
	c.mu.Lock()
	delete(c.players, p.ID)
	c.mu.Unlock()

	if !c.IsAvailable() {
		return nil
	}
	return c.send(EventPlayerLeave, p, nil, false)
}

// SubmitRecord submits a finished run. cb runs when the API acknowledges
// it.
func (c *Client) SubmitRecord(rec NewRecord, cb func(NewRecordAck)) SubmitRecordResult {
	if rec.PlayerID == 0 {
		return SubmitPlayerNotAuthenticated
	}
	if c.CurrentMap() == nil {
		c.logger.Debug("can't submit a record on a non-global map")
		return SubmitMapNotGlobal
	}

	switch c.State() {
	case StateHandshakeCompleted:
		if err := request(c, EventNewRecord, rec, cb, true); err != nil {
			c.logger.Warn("failed to submit record", "err", err)
			return SubmitNotConnected
		}
		return SubmitSubmitted
	case StateDisconnected:
		return SubmitNotConnected
	default:
		if err := request(c, EventNewRecord, rec, cb, true); err != nil {
			return SubmitNotConnected
		}
		return SubmitQueued
	}
}

// WantPersonalBest asks for a player's global PB
func (c *Client) WantPersonalBest(req WantPersonalBest, cb func(PersonalBest)) error {
	if !c.IsAvailable() {
		return ErrNotConnected
	}
	return request(c, EventWantPB, req, cb, false)
}

// WantWorldRecords asks for the world records of a map for the record cache
func (c *Client) WantWorldRecords(mapID int64, cb func(WorldRecords)) error {
	if !c.IsAvailable() {
		return ErrNotConnected
	}
	return request(c, EventWantWorldRecord, WantWorldRecords{MapID: mapID}, cb, false)
}
