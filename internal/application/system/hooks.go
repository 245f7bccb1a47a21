package system

// BaseHooks implements Hooks with no-ops. Modes and styles embed it and
// override what they need.
type BaseHooks struct{}

func (BaseHooks) OnProcessMovement(*Move)          {}
func (BaseHooks) OnPlayerMove(*Move)               {}
func (BaseHooks) OnCheckJumpButton(*Move)          {}
func (BaseHooks) OnAirMove(*Move)                  {}
func (BaseHooks) OnAirMovePost(*Move)              {}
func (BaseHooks) OnTryPlayerMove(*Move)            {}
func (BaseHooks) OnTryPlayerMovePost(*Move)        {}
func (BaseHooks) OnCategorizePosition(*Move, bool) {}
func (BaseHooks) OnProcessMovementPost(*Move)      {}

// HookList runs every hook in order
type HookList []Hooks

func (l HookList) OnProcessMovement(m *Move) {
	for _, h := range l {
		h.OnProcessMovement(m)
	}
}

func (l HookList) OnPlayerMove(m *Move) {
	for _, h := range l {
		h.OnPlayerMove(m)
	}
}

func (l HookList) OnCheckJumpButton(m *Move) {
	for _, h := range l {
		h.OnCheckJumpButton(m)
	}
}

func (l HookList) OnAirMove(m *Move) {
	for _, h := range l {
		h.OnAirMove(m)
	}
}

func (l HookList) OnAirMovePost(m *Move) {
	for _, h := range l {
		h.OnAirMovePost(m)
	}
}

func (l HookList) OnTryPlayerMove(m *Move) {
	for _, h := range l {
		h.OnTryPlayerMove(m)
	}
}

func (l HookList) OnTryPlayerMovePost(m *Move) {
	for _, h := range l {
		h.OnTryPlayerMovePost(m)
	}
}

func (l HookList) OnCategorizePosition(m *Move, stayOnGround bool) {
	for _, h := range l {
		h.OnCategorizePosition(m, stayOnGround)
	}
}

func (l HookList) OnProcessMovementPost(m *Move) {
	for _, h := range l {
		h.OnProcessMovementPost(m)
	}
}
