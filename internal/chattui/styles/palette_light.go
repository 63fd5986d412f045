package styles

// LightTheme targets light terminal backgrounds.
var LightTheme = Theme{
	Name:        "light",
	UserPalette: append([]string(nil), UserColorPalette...),
	Base: BaseColors{
		Background: "255",
		Foreground: "235",
		Muted:      "244",
		Accent:     "26",
		Border:     "250",
	},
	Message: MessageColors{
		Own:       "26",
		Other:     "90",
		Tombstone: "248",
		EditedTag: "244",
	},
	Status: StatusColors{
		Online:   "28",
		Typing:   "130",
		ReadTick: "26",
		SentTick: "248",
		Error:    "124",
	},
	Chrome: ChromeColors{
		Header:       "25",
		Footer:       "24",
		SelectedItem: "26",
		UnreadBadge:  "124",
		Separator:    "252",
	},
}
