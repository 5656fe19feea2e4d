package models

// Setting keys.
const (
	SettingSelectedDeck     = "selected_deck"
	SettingInstallationDate = "installation_date"
	SettingLastCleanup      = "last_cleanup_date"
)

// Setting is a process-wide key/value pair.
type Setting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}
