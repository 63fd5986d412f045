package styles

// DarkTheme is the baseline dark palette.
var DarkTheme = Theme{
	Name:        "dark",
	UserPalette: append([]string(nil), UserColorPalette...),
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Message: MessageColors{
		Own:       "81",
		Other:     "147",
		Tombstone: "243",
		EditedTag: "245",
	},
	Status: StatusColors{
		Online:   "41",
		Typing:   "220",
		ReadTick: "75",
		SentTick: "245",
		Error:    "203",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		SelectedItem: "75",
		UnreadBadge:  "203",
		Separator:    "238",
	},
}
