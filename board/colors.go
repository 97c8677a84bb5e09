package board

// epicColors maps the color names Jira stores on epics to the hex codes its UI shows.
var epicColors = map[string]string{
	"purple":      "#8777D9",
	"blue":        "#2684FF",
	"green":       "#57D9A3",
	"teal":        "#00C7E6",
	"yellow":      "#FFC400",
	"orange":      "#FF7452",
	"grey":        "#6B778C",
	"dark_purple": "#5243AA",
	"dark_blue":   "#0052CC",
	"dark_green":  "#00875A",
	"dark_teal":   "#00A3BF",
	"dark_yellow": "#FF991F",
	"dark_orange": "#DE350B",
	"dark_grey":   "#253858",
}

// TranslateColor returns the hex code of a Jira epic color name. Unknown names are logged.
func TranslateColor(name string) (string, bool) {
	color, ok := epicColors[name]
	if !ok {
		logger("color").WithField("color", name).Warn("Could not translate color")
	}
	return color, ok
}
