package tui

// Key bindings used in handleKey.
const (
	keyQuit        = "q"
	keyCtrlC       = "ctrl+c"
	keyTalk        = " "
	keyType        = "enter"
	keySwap        = "s"
	keyPersona     = "p"
	keyModel       = "m"
	keyModelTier   = "M"
	keyAPIKey      = "a"
	keyPlayback    = "v"
	keyInputMode   = "i"
	keyFontUp      = "+"
	keyFontDown    = "-"
	keySessions    = "tab"
	keyNewSession  = "n"
	keyDelete      = "d"
	keyUp          = "up"
	keyDown        = "down"
	keyJ           = "j"
	keyK           = "k"
	keyEsc         = "esc"
	keyClearErrors = "c"
	keyReplay      = "r"
	keyReplaySrc   = "R"
)
