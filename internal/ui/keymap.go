package ui

// KeyMap defines keyboard bindings for the dashboard.
type KeyMap struct {
	Quit        []string
	ToggleTests string
	ToggleLog   string
	CycleFocus  string
	Caches      string
	Up          string
	Down        string
	PageUp      string
	PageDown    string
	Top         string
	Bottom      string
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        []string{"q", "ctrl+c"},
		ToggleTests: "t",
		ToggleLog:   "l",
		CycleFocus:  "tab",
		Caches:      "c",
		Up:          "up",
		Down:        "down",
		PageUp:      "pgup",
		PageDown:    "pgdown",
		Top:         "home",
		Bottom:      "end",
	}
}

func (k KeyMap) isQuit(key string) bool {
	for _, q := range k.Quit {
		if key == q {
			return true
		}
	}
	return false
}

// HelpEntries returns key/description pairs for the help bar.
func (k KeyMap) HelpEntries() [][2]string {
	return [][2]string{
		{k.ToggleTests, "tests"},
		{k.ToggleLog, "log"},
		{k.CycleFocus, "focus"},
		{k.Caches, "caches"},
		{k.Up + "/" + k.Down, "scroll"},
		{k.Quit[0], "quit"},
	}
}
