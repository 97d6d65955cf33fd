package intake

// sourceLabels maps known UI element keys to human-readable labels for CRM
// attribution. Unknown keys pass through unchanged.
var sourceLabels = map[string]string{
	"hero_cta":        "Hero banner",
	"pricing_cta":     "Pricing section",
	"footer_form":     "Footer form",
	"popup_form":      "Exit popup",
	"contact_page":    "Contact page",
	"heyform":         "HeyForm embed",
	"zapier":          "Zapier integration",
	"callback_widget": "Callback widget",
}

// SourceLabel resolves the submitted button/source key to a display label.
// An empty key yields the literal "unknown".
func SourceLabel(key string) string {
	if key == "" {
		return "unknown"
	}
	if label, ok := sourceLabels[key]; ok {
		return label
	}
	return key
}
