package notion

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Property builders for the Notion page/property model. Each returns the
// JSON fragment Notion expects for that property type.

func titleProp(content string) map[string]interface{} {
	return map[string]interface{}{
		"title": []map[string]interface{}{
			{"text": map[string]string{"content": content}},
		},
	}
}

func richTextProp(content string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []map[string]interface{}{
			{"text": map[string]string{"content": content}},
		},
	}
}

func numberProp(n float64) map[string]interface{} {
	return map[string]interface{}{"number": n}
}

func dateProp(start string) map[string]interface{} {
	return map[string]interface{}{"date": map[string]string{"start": start}}
}

func selectProp(name string) map[string]interface{} {
	return map[string]interface{}{"select": map[string]string{"name": name}}
}

func multiSelectProp(names []string) map[string]interface{} {
	options := make([]map[string]string, 0, len(names))
	for _, n := range names {
		options = append(options, map[string]string{"name": n})
	}
	return map[string]interface{}{"multi_select": options}
}

func urlProp(u string) map[string]interface{} {
	return map[string]interface{}{"url": u}
}

// muscleGroupName turns a Hevy muscle group identifier such as "upper_back"
// into the display form used for select options, "Upper Back".
func muscleGroupName(raw string) string {
	return titleCaser.String(strings.ReplaceAll(raw, "_", " "))
}

// dateOnly extracts the date segment from the leading part of an ISO-8601
// timestamp. Input without a time component passes through unchanged.
func dateOnly(ts string) string {
	if i := strings.Index(ts, "T"); i > 0 {
		return ts[:i]
	}
	return ts
}
