package model

// DataLang maps the session locale to the language code used for data:
// "pt" and "pt-br" both become "pt-br".
func DataLang(locale string) string {
	if locale == "pt" || locale == "pt-br" {
		return "pt-br"
	}
	return locale
}
