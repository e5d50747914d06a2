package export

import (
	"sort"
	"strings"
	"unicode"

	"screentime/internal/model"
)

var sourceIcons = map[string]string{
	"iphone": "mdi:cellphone",
	"ipad":   "mdi:tablet",
	"mac":    "mdi:laptop",
}

// Sensors derives the state-sink entities from a daily aggregate. Every
// name in sources gets a sensor, reporting zero when it had no usage.
func Sensors(agg *model.DailyAggregate, prefix, primaryCategory string, sources []string) []Sensor {
	if agg == nil {
		return nil
	}
	if prefix == "" {
		prefix = "sensor.screentime"
	}
	out := []Sensor{{
		Entity: prefix + "_total",
		State:  model.Minutes(agg.TotalSeconds),
		Unit:   "min",
		Attributes: map[string]any{
			"friendly_name": "Screen Time Total",
			"icon":          "mdi:cellphone-screen",
			"session_count": agg.SessionCount,
		},
	}}

	names := append([]string(nil), sources...)
	for name := range agg.PerSourceSeconds {
		if !contains(names, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		icon, ok := sourceIcons[strings.ToLower(name)]
		if !ok {
			icon = "mdi:devices"
		}
		out = append(out, Sensor{
			Entity: prefix + "_" + slug(name),
			State:  model.Minutes(agg.PerSourceSeconds[name]),
			Unit:   "min",
			Attributes: map[string]any{
				"friendly_name": "Screen Time " + displayName(name),
				"icon":          icon,
			},
		})
	}

	out = append(out, Sensor{
		Entity: prefix + "_top_app",
		State:  agg.TopApp,
		Attributes: map[string]any{
			"friendly_name": "Top App Today",
			"icon":          "mdi:trophy",
			"minutes":       model.Minutes(agg.TopAppSeconds),
		},
	})

	byCategory := map[string]any{
		"friendly_name": "Screen Time by Category",
		"icon":          "mdi:chart-pie",
	}
	for cat, secs := range agg.PerCategorySeconds {
		byCategory["category_"+slug(cat)] = model.Minutes(secs)
	}
	out = append(out, Sensor{
		Entity:     prefix + "_by_category",
		State:      model.Minutes(agg.PerCategorySeconds[primaryCategory]),
		Unit:       "min",
		Attributes: byCategory,
	})

	topApps := map[string]any{
		"friendly_name": "Screen Time Top Apps",
		"icon":          "mdi:format-list-numbered",
	}
	for _, app := range agg.PerAppSeconds {
		topApps[app.Title] = model.Minutes(app.Seconds)
	}
	out = append(out, Sensor{
		Entity:     prefix + "_top_apps",
		State:      len(agg.PerAppSeconds),
		Unit:       "apps",
		Attributes: topApps,
	})
	return out
}

// slug lower-cases s and replaces every run of non-alphanumerics with "_".
func slug(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}

func displayName(source string) string {
	switch strings.ToLower(source) {
	case "iphone":
		return "iPhone"
	case "ipad":
		return "iPad"
	case "mac":
		return "Mac"
	}
	if source == "" {
		return source
	}
	r := []rune(source)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
